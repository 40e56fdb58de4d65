package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
)

func testPlan() subscription.Plan {
	return subscription.Plan{
		ID:       "growth",
		Price:    subscription.Money{Amount: 4900, Currency: "USD"},
		Interval: subscription.BillingIntervalMonthly,
		IsActive: true,
		Limits: map[subscription.Metric]subscription.Limit{
			subscription.MetricAPICalls:  {Soft: 1000, Hard: 1200},
			subscription.MetricStorageGB: {Soft: subscription.Unlimited, Hard: 50},
			subscription.MetricUsers:     {Soft: 8, Hard: 10},
		},
		Overage: map[subscription.Metric]subscription.OverageRate{
			subscription.MetricAPICalls:  {Included: 1000, UnitPrice: 2},
			subscription.MetricStorageGB: {Included: 20, UnitPrice: 100},
		},
	}
}

func stores(t *testing.T) map[string]usage.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]usage.Store{
		"memory": usage.NewMemoryStore(),
		"redis":  usage.NewRedisStore(client, usage.RedisConfig{Prefix: "test:usage:"}),
	}
}

func TestCheckUsageLimits(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			m := usage.NewMonitor(store)
			sub := subscription.Subscription{TenantID: uuid.New()}
			plan := testPlan()

			_, err := m.RecordUsage(ctx, sub.TenantID, subscription.MetricAPICalls, 950)
			require.NoError(t, err)

			tests := []struct {
				delta int64
				want  usage.Decision
			}{
				{delta: 50, want: usage.Allowed},
				{delta: 100, want: usage.AllowedWithWarning},
				{delta: 250, want: usage.AllowedWithWarning},
				{delta: 251, want: usage.Denied},
			}
			for _, tt := range tests {
				res, err := m.CheckUsageLimits(ctx, sub, plan, subscription.MetricAPICalls, tt.delta)
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Decision, "950 + %d", tt.delta)
				assert.EqualValues(t, 950, res.Current)
			}

			current, err := store.Get(ctx, sub.TenantID, subscription.MetricAPICalls)
			require.NoError(t, err)
			assert.EqualValues(t, 950, current, "checks never record usage")

			res, err := m.CheckUsageLimits(ctx, sub, plan, subscription.MetricBranches, 1_000_000)
			require.NoError(t, err)
			assert.Equal(t, usage.Allowed, res.Decision, "metrics without limits are unlimited")

			res, err = m.CheckUsageLimits(ctx, sub, plan, subscription.MetricStorageGB, 45)
			require.NoError(t, err)
			assert.Equal(t, usage.Allowed, res.Decision, "unlimited soft limit never warns")
		})
	}
}

func TestEnforce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := usage.NewMonitor(usage.NewMemoryStore())
	sub := subscription.Subscription{TenantID: uuid.New()}

	_, err := m.RecordUsage(ctx, sub.TenantID, subscription.MetricUsers, 10)
	require.NoError(t, err)

	res, err := m.Enforce(ctx, sub, testPlan(), subscription.MetricUsers, 1)
	require.ErrorIs(t, err, usage.ErrUsageLimitExceeded)
	assert.Equal(t, usage.Denied, res.Decision)
	assert.EqualValues(t, 11, res.Projected())

	res, err = m.Enforce(ctx, sub, testPlan(), subscription.MetricUsers, -1)
	require.NoError(t, err)
	assert.Equal(t, usage.AllowedWithWarning, res.Decision)
}

func TestCalculateUsageBasedCharges(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			m := usage.NewMonitor(store)
			sub := subscription.Subscription{TenantID: uuid.New()}

			charge, err := m.CalculateUsageBasedCharges(ctx, sub, testPlan())
			require.NoError(t, err)
			assert.Equal(t, subscription.Money{Amount: 0, Currency: "USD"}, charge)

			_, err = m.RecordUsage(ctx, sub.TenantID, subscription.MetricAPICalls, 1150)
			require.NoError(t, err)
			_, err = m.RecordUsage(ctx, sub.TenantID, subscription.MetricStorageGB, 23)
			require.NoError(t, err)

			charge, err = m.CalculateUsageBasedCharges(ctx, sub, testPlan())
			require.NoError(t, err)
			assert.EqualValues(t, 150*2+3*100, charge.Amount)
		})
	}
}

func TestExceededHardLimitsAndReset(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			m := usage.NewMonitor(store)
			tenantID := uuid.New()

			_, err := m.RecordUsage(ctx, tenantID, subscription.MetricUsers, 11)
			require.NoError(t, err)
			_, err = m.RecordUsage(ctx, tenantID, subscription.MetricStorageGB, 51)
			require.NoError(t, err)
			_, err = m.RecordUsage(ctx, tenantID, subscription.MetricAPICalls, 1200)
			require.NoError(t, err)

			exceeded, err := m.ExceededHardLimits(ctx, tenantID, testPlan())
			require.NoError(t, err)
			assert.Equal(t, []subscription.Metric{subscription.MetricStorageGB, subscription.MetricUsers}, exceeded)

			periodStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, m.ResetPeriod(ctx, tenantID, periodStart))

			exceeded, err = m.ExceededHardLimits(ctx, tenantID, testPlan())
			require.NoError(t, err)
			assert.Empty(t, exceeded)

			_, err = m.RecordUsage(ctx, tenantID, subscription.MetricAPICalls, 7)
			require.NoError(t, err)
			records, err := store.All(ctx, tenantID)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, usage.Record{
				TenantID:    tenantID,
				Metric:      subscription.MetricAPICalls,
				Value:       7,
				PeriodStart: periodStart,
			}, records[0])
		})
	}
}

func TestGauges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gauges := usage.NewGaugeRegistry()
	gauges.Register(subscription.MetricUsers, func(context.Context, uuid.UUID) (int64, error) {
		return 9, nil
	})
	gauges.Register(subscription.MetricStorageGB, func(context.Context, uuid.UUID) (int64, error) {
		return 0, errors.New("db down")
	})

	m := usage.NewMonitor(usage.NewMemoryStore(), usage.WithGauges(gauges))
	sub := subscription.Subscription{TenantID: uuid.New()}

	res, err := m.CheckUsageLimits(ctx, sub, testPlan(), subscription.MetricUsers, 1)
	require.NoError(t, err)
	assert.Equal(t, usage.AllowedWithWarning, res.Decision)
	assert.EqualValues(t, 9, res.Current)

	_, err = m.CheckUsageLimits(ctx, sub, testPlan(), subscription.MetricStorageGB, 1)
	require.ErrorIs(t, err, usage.ErrFailedToCountUsage)

	assert.Panics(t, func() { gauges.Register(subscription.MetricBranches, nil) })
}

func TestUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := usage.NewMonitor(usage.NewMemoryStore())
	tenantID := uuid.New()

	_, err := m.RecordUsage(ctx, tenantID, subscription.MetricAPICalls, 600)
	require.NoError(t, err)

	info, err := m.Usage(ctx, tenantID, testPlan())
	require.NoError(t, err)
	assert.Equal(t, 50, info[subscription.MetricAPICalls].Percent)
	assert.Zero(t, info[subscription.MetricUsers].Current)
	assert.Len(t, info, 3)
}

func TestNewMonitor_RequiresStore(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { usage.NewMonitor(nil) })
}

func TestMonitorImplementsUsageMeter(t *testing.T) {
	t.Parallel()
	var _ subscription.UsageMeter = usage.NewMonitor(usage.NewMemoryStore())
}
