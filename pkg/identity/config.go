package identity

import "time"

// Config of the identity service client and its fallback cache.
type Config struct {
	BaseURL       string        `env:"IDENTITY_SERVICE_URL,required"`
	APIToken      string        `env:"IDENTITY_SERVICE_TOKEN"`
	CacheTTL      time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"24h"` // how stale a fallback profile may be
	CacheCapacity int           `env:"IDENTITY_CACHE_CAPACITY" envDefault:"10000"`
	CachePrefix   string        `env:"IDENTITY_CACHE_PREFIX" envDefault:"billing:tenant:"`
}
