package usage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// periodField holds the period start (unix nanoseconds) inside the tenant hash.
const periodField = "_period_start"

// RedisConfig configures the Redis usage store.
type RedisConfig struct {
	Prefix string `env:"USAGE_REDIS_PREFIX" envDefault:"billing:usage:"`
}

// RedisStore keeps one hash per tenant with a field per metric, so counters
// are shared by every process and incremented atomically with HINCRBY.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed usage store.
func NewRedisStore(client redis.Cmdable, cfg RedisConfig) *RedisStore {
	if client == nil {
		panic("usage: redis client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "billing:usage:"
	}
	return &RedisStore{client: client, prefix: cfg.Prefix}
}

func (s *RedisStore) key(tenantID uuid.UUID) string {
	return s.prefix + tenantID.String()
}

func (s *RedisStore) Get(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric) (int64, error) {
	v, err := s.client.HGet(ctx, s.key(tenantID), string(metric)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *RedisStore) All(ctx context.Context, tenantID uuid.UUID) ([]Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(tenantID)).Result()
	if err != nil {
		return nil, err
	}

	var periodStart time.Time
	if raw, ok := fields[periodField]; ok {
		ns, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		periodStart = time.Unix(0, ns).UTC()
	}

	out := make([]Record, 0, len(fields))
	for field, raw := range fields {
		if field == periodField {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{
			TenantID:    tenantID,
			Metric:      subscription.Metric(field),
			Value:       v,
			PeriodStart: periodStart,
		})
	}
	return out, nil
}

func (s *RedisStore) Increment(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric, delta int64) (int64, error) {
	return s.client.HIncrBy(ctx, s.key(tenantID), string(metric), delta).Result()
}

func (s *RedisStore) Reset(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) error {
	key := s.key(tenantID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, periodField, periodStart.UnixNano())
		return nil
	})
	return err
}
