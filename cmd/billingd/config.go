package main

import (
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/catalog"
	"github.com/dmitrymomot/billingcore/pkg/gateway"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/identity"
	"github.com/dmitrymomot/billingcore/pkg/locker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/notify"
	"github.com/dmitrymomot/billingcore/pkg/redis"
	"github.com/dmitrymomot/billingcore/pkg/storage/postgres"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/sweep"
	"github.com/dmitrymomot/billingcore/pkg/usage"
)

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	Postgres postgres.Config
	Redis    redis.Config
	Breakers breaker.RegistryConfig
	Identity identity.Config
	Lock     locker.RedisConfig
	Usage    usage.RedisConfig
	Catalog  catalog.Config
	Gateway  gateway.Config
	Email    notify.EmailConfig
	Webhook  notify.WebhookConfig
	Billing  subscription.Config
	Sweep    sweep.Config
}

func defaultConfig() appConfig {
	return appConfig{
		Breakers: breaker.DefaultRegistryConfig(),
	}
}
