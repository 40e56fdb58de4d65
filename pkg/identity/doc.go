// Package identity resolves tenant attributes (region, compliance flags,
// billing e-mail) from the external identity service.
//
// Every call goes through the identity_service circuit breaker and therefore
// carries the breaker's call timeout. Successful lookups are cached; when the
// service times out, errors or the breaker is open, the last cached profile is
// served instead. Callers get ErrTenantUnavailable only when neither source can
// answer, and ErrTenantNotFound when the service positively does not know the
// tenant.
//
//	client := identity.NewClient(cfg, nil)
//	resolver := identity.NewResolver(client, breakers,
//	    identity.WithCache(identity.NewRedisCache(rdb, cfg.CachePrefix, cfg.CacheTTL)),
//	)
//	profile, err := resolver.Resolve(ctx, tenantID)
package identity
