package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/catalog"
	"github.com/dmitrymomot/billingcore/pkg/config"
	"github.com/dmitrymomot/billingcore/pkg/gateway"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/sweep"
)

func TestConfig_BreakerOverridesArePerDependency(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://localhost/billing")
	t.Setenv("IDENTITY_SERVICE_URL", "http://identity.local")
	t.Setenv("BREAKER_PAYMENT_FAILURE_THRESHOLD", "7")

	cfg := defaultConfig()
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, 7, cfg.Breakers.Payment.FailureThreshold)
	assert.Equal(t, 120*time.Second, cfg.Breakers.Payment.Cooldown)
	assert.Equal(t, 5, cfg.Breakers.Identity.FailureThreshold)
	assert.Equal(t, 300*time.Second, cfg.Breakers.Webhook.Cooldown)
	assert.Equal(t, "@every 5m", cfg.Sweep.ExpirySchedule)
}

func newTestSweeper(t *testing.T, clock func() time.Time) (*sweep.Sweeper, subscription.Service) {
	t.Helper()
	plans, err := catalog.New(subscription.Plan{
		ID:       "basic",
		Interval: subscription.BillingIntervalMonthly,
		Price:    subscription.Money{Amount: 900, Currency: "USD"},
		IsActive: true,
	})
	require.NoError(t, err)

	breakers := breaker.NewDefaultRegistry(breaker.DefaultRegistryConfig(), breaker.WithClock(clock))
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, plans, gateway.NewFake(), breakers, subscription.WithClock(clock))
	return sweep.New(store, svc, sweep.WithClock(clock)), svc
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper, _ := newTestSweeper(t, time.Now)

	c, err := newScheduler(context.Background(), sweep.Config{ExpirySchedule: "@every 5m", RetrySchedule: "@hourly"}, sweeper, log)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)

	_, err = newScheduler(context.Background(), sweep.Config{ExpirySchedule: "every five minutes", RetrySchedule: "@hourly"}, sweeper, log)
	require.ErrorContains(t, err, "invalid expiry schedule")
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	sweeper, svc := newTestSweeper(t, func() time.Time { return now })
	sub, err := svc.CreateSubscription(ctx, uuid.New(), "basic", subscription.CreateOptions{ManualRenewal: true})
	require.NoError(t, err)

	now = now.AddDate(0, 2, 0)

	require.NoError(t, runOnce(ctx, sweeper, []sweep.RunOption{sweep.DryRun()}, log))
	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)

	require.NoError(t, runOnce(ctx, sweeper, nil, log))
	got, err = svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, got.Status)
}
