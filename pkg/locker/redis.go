package locker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token,
// so an expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	Prefix        string        `env:"LOCK_PREFIX" envDefault:"billing:lock:"`
	TTL           time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	RetryInterval time.Duration `env:"LOCK_RETRY_INTERVAL" envDefault:"50ms"`
}

// Redis serializes work per key across processes with SET NX PX.
// The TTL bounds how long a crashed holder can block others; callers that may
// outlive it must rely on optimistic versioning in storage as well.
type Redis struct {
	client redis.Cmdable
	cfg    RedisConfig
}

// NewRedis creates a distributed lock on top of client.
func NewRedis(client redis.Cmdable, cfg RedisConfig) *Redis {
	if client == nil {
		panic("locker: redis client is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	return &Redis{client: client, cfg: cfg}
}

// Lock polls until key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = r.cfg.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, errors.Join(ErrLockFailed, err)
		}
		if ok {
			return func() {
				// Release must happen even if the caller's context is already done.
				ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RetryInterval*20)
				defer cancel()
				_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
