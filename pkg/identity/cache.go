package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingcore/pkg/cache"
)

// Cache keeps the last successfully fetched profile per tenant.
type Cache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (Profile, bool, error)
	Set(ctx context.Context, p Profile) error
}

// MemoryCache is a bounded in-process Cache.
type MemoryCache struct {
	lru *cache.LRUCache[uuid.UUID, Profile]
}

// NewMemoryCache creates an in-process cache holding up to capacity profiles for ttl.
func NewMemoryCache(capacity int, ttl time.Duration, opts ...cache.Option) *MemoryCache {
	return &MemoryCache{lru: cache.NewLRUCache[uuid.UUID, Profile](capacity, append(opts, cache.WithTTL(ttl))...)}
}

func (c *MemoryCache) Get(_ context.Context, tenantID uuid.UUID) (Profile, bool, error) {
	p, ok := c.lru.Get(tenantID)
	return p, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, p Profile) error {
	c.lru.Put(p.TenantID, p)
	return nil
}

// RedisCache shares cached profiles across processes.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed Cache.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("identity: redis client is required")
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, tenantID uuid.UUID) (Profile, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+tenantID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, err
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+p.TenantID.String(), raw, c.ttl).Err()
}
