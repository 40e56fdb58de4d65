package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Resolver resolves tenant profiles through the identity_service breaker and
// falls back to the last cached profile when the service cannot answer.
type Resolver struct {
	fetcher Fetcher
	breaker *breaker.Breaker
	cache   Cache
	log     *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the fallback cache. Without one, failures are not masked.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a Resolver using the identity_service breaker from breakers.
// Panics if fetcher is nil or the breaker is not registered.
func NewResolver(fetcher Fetcher, breakers *breaker.Registry, opts ...ResolverOption) *Resolver {
	if fetcher == nil {
		panic("identity: fetcher is required")
	}
	if breakers == nil {
		panic("identity: breaker registry is required")
	}

	r := &Resolver{
		fetcher: fetcher,
		breaker: breakers.MustGet(breaker.IdentityService),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tenant profile. ErrTenantNotFound is returned as is and
// does not count against the identity service; any other failure is served
// from cache when possible, otherwise ErrTenantUnavailable is returned.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID) (Profile, error) {
	notFound := false
	p, err := breaker.Execute(ctx, r.breaker, func(ctx context.Context) (Profile, error) {
		p, err := r.fetcher.Fetch(ctx, tenantID)
		if errors.Is(err, ErrTenantNotFound) {
			notFound = true
			return Profile{}, nil
		}
		return p, err
	})

	if err == nil && notFound {
		return Profile{}, ErrTenantNotFound
	}

	if err == nil {
		if r.cache != nil {
			if cerr := r.cache.Set(ctx, p); cerr != nil {
				r.log.WarnContext(ctx, "failed to cache tenant profile", logger.TenantID(tenantID), logger.Error(cerr))
			}
		}
		return p, nil
	}

	if r.cache != nil {
		cached, ok, cerr := r.cache.Get(ctx, tenantID)
		if cerr != nil {
			r.log.WarnContext(ctx, "failed to read cached tenant profile", logger.TenantID(tenantID), logger.Error(cerr))
		}
		if ok {
			r.log.WarnContext(ctx, "identity service unavailable, using cached tenant profile",
				logger.TenantID(tenantID), logger.Dependency(breaker.IdentityService), logger.Error(err))
			return cached, nil
		}
	}

	return Profile{}, errors.Join(ErrTenantUnavailable, err)
}
