package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/identity"
)

type stubFetcher struct {
	calls   atomic.Int32
	profile identity.Profile
	err     error
}

func (f *stubFetcher) Fetch(_ context.Context, tenantID uuid.UUID) (identity.Profile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return identity.Profile{}, f.err
	}
	p := f.profile
	p.TenantID = tenantID
	return p, nil
}

func newRegistry(threshold int) *breaker.Registry {
	r := breaker.NewRegistry()
	r.Register(breaker.IdentityService, breaker.Config{
		FailureThreshold: threshold,
		Cooldown:         time.Hour,
		CallTimeout:      time.Second,
	})
	return r
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/tenants/" + tenantID.String():
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tenant_id":        tenantID,
				"name":             "Acme",
				"region":           "eu",
				"compliance_flags": []string{identity.ComplianceVerified},
				"active":           true,
			})
		case "/tenants/" + uuid.Nil.String():
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := identity.NewClient(identity.Config{BaseURL: srv.URL, APIToken: "secret"}, srv.Client())

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		p, err := client.Fetch(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, tenantID, p.TenantID)
		assert.Equal(t, "eu", p.Region)
		assert.True(t, p.Active)
		assert.True(t, p.HasCompliance(identity.ComplianceVerified))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := client.Fetch(context.Background(), uuid.New())
		require.ErrorIs(t, err, identity.ErrTenantNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		_, err := client.Fetch(context.Background(), uuid.Nil)
		require.ErrorIs(t, err, identity.ErrUnexpectedResponse)
	})
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { identity.NewClient(identity.Config{}, nil) })
}

func TestResolver_CachesAndFallsBack(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{profile: identity.Profile{Region: "us", Active: true}}
	cache := identity.NewMemoryCache(10, time.Hour)
	r := identity.NewResolver(fetcher, newRegistry(5), identity.WithCache(cache))

	tenantID := uuid.New()
	p, err := r.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "us", p.Region)

	fetcher.err = errors.New("connection refused")
	p, err = r.Resolve(context.Background(), tenantID)
	require.NoError(t, err, "cached profile must be served while the service fails")
	assert.Equal(t, "us", p.Region)

	_, err = r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, identity.ErrTenantUnavailable)
}

func TestResolver_OpenCircuitServesCache(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{profile: identity.Profile{Region: "eu"}}
	registry := newRegistry(2)
	r := identity.NewResolver(fetcher, registry, identity.WithCache(identity.NewMemoryCache(10, time.Hour)))

	tenantID := uuid.New()
	_, err := r.Resolve(context.Background(), tenantID)
	require.NoError(t, err)

	fetcher.err = errors.New("boom")
	for range 2 {
		_, err = r.Resolve(context.Background(), tenantID)
		require.NoError(t, err)
	}
	assert.Equal(t, breaker.Open, registry.MustGet(breaker.IdentityService).State())

	calls := fetcher.calls.Load()
	p, err := r.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "eu", p.Region)
	assert.Equal(t, calls, fetcher.calls.Load(), "open circuit must not reach the service")

	_, err = r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, identity.ErrTenantUnavailable)
	require.ErrorIs(t, err, breaker.ErrCircuitOpen)
}

func TestResolver_NotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: identity.ErrTenantNotFound}
	registry := newRegistry(1)
	r := identity.NewResolver(fetcher, registry)

	for range 3 {
		_, err := r.Resolve(context.Background(), uuid.New())
		require.ErrorIs(t, err, identity.ErrTenantNotFound)
	}
	assert.Equal(t, breaker.Closed, registry.MustGet(breaker.IdentityService).State())
	assert.EqualValues(t, 3, fetcher.calls.Load())
}

func TestResolver_WithoutCache(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: timeout")
	r := identity.NewResolver(&stubFetcher{err: cause}, newRegistry(5))

	_, err := r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, identity.ErrTenantUnavailable)
	require.ErrorIs(t, err, cause)
}

func TestResolver_RequiresDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { identity.NewResolver(nil, newRegistry(1)) })
	assert.Panics(t, func() { identity.NewResolver(&stubFetcher{}, nil) })
	assert.Panics(t, func() { identity.NewResolver(&stubFetcher{}, breaker.NewRegistry()) })
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := identity.NewRedisCache(client, "test:tenant:", time.Minute)
	ctx := context.Background()

	tenantID := uuid.New()
	_, ok, err := c.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	want := identity.Profile{TenantID: tenantID, Name: "Acme", Region: "eu", ComplianceFlags: []string{identity.ComplianceVerified}}
	require.NoError(t, c.Set(ctx, want))
	assert.True(t, mr.Exists("test:tenant:"+tenantID.String()))

	got, ok, err := c.Get(ctx, tenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expires(t *testing.T) {
	t.Parallel()

	c := identity.NewMemoryCache(10, time.Nanosecond)
	tenantID := uuid.New()
	require.NoError(t, c.Set(context.Background(), identity.Profile{TenantID: tenantID}))

	time.Sleep(time.Millisecond)
	_, ok, err := c.Get(context.Background(), tenantID)
	require.NoError(t, err)
	assert.False(t, ok)
}
