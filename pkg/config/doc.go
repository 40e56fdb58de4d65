// Package config loads typed configuration structs from environment variables
// (github.com/caarlos0/env) with optional dotenv files (github.com/joho/godotenv).
//
// Each package owns a small tagged Config struct; binaries compose them:
//
//	type Config struct {
//		Postgres postgres.Config
//		Redis    redis.Config
//		Breakers breaker.RegistryConfig
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
