// Package redis connects to the Redis server shared by the distributed
// subscription lock, the usage counters and the tenant profile cache.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	locks := locker.NewRedis(client, lockCfg)
//	counters := usage.NewRedisStore(client, usageCfg)
//
// Connect retries with exponential backoff until the server answers or
// Config.ConnectTimeout elapses. Healthcheck returns a probe for readiness
// endpoints.
package redis
