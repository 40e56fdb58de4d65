package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Monitor checks and records metered usage against plan limits.
// It implements subscription.UsageMeter.
type Monitor interface {
	// CheckUsageLimits decides whether delta more units of metric fit the plan.
	// It never changes any counter.
	CheckUsageLimits(ctx context.Context, sub subscription.Subscription, plan subscription.Plan, metric subscription.Metric, delta int64) (Result, error)
	// Enforce is CheckUsageLimits returning ErrUsageLimitExceeded for denied requests.
	Enforce(ctx context.Context, sub subscription.Subscription, plan subscription.Plan, metric subscription.Metric, delta int64) (Result, error)
	// RecordUsage adds delta to the counter. Call it only after the guarded action succeeded.
	RecordUsage(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric, delta int64) (int64, error)
	// Usage reports every limited metric of the plan for the tenant.
	Usage(ctx context.Context, tenantID uuid.UUID, plan subscription.Plan) (map[subscription.Metric]Info, error)

	subscription.UsageMeter
}

// MonitorOption configures a Monitor.
type MonitorOption func(*monitor)

// WithGauges counts the registered metrics at the source instead of the store.
func WithGauges(gauges GaugeRegistry) MonitorOption {
	return func(m *monitor) {
		for metric, fn := range gauges {
			m.gauges.Register(metric, fn)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *monitor) {
		if l != nil {
			m.log = l
		}
	}
}

type monitor struct {
	store  Store
	gauges GaugeRegistry
	log    *slog.Logger
}

// NewMonitor creates a Monitor backed by store. Panics if store is nil.
func NewMonitor(store Store, opts ...MonitorOption) Monitor {
	if store == nil {
		panic("usage: Store is required")
	}
	m := &monitor{store: store, gauges: NewGaugeRegistry(), log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *monitor) current(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric) (int64, error) {
	var (
		v   int64
		err error
	)
	if gauge, ok := m.gauges[metric]; ok {
		v, err = gauge(ctx, tenantID)
	} else {
		v, err = m.store.Get(ctx, tenantID, metric)
	}
	if err != nil {
		return 0, errors.Join(ErrFailedToCountUsage, err)
	}
	return v, nil
}

func (m *monitor) CheckUsageLimits(ctx context.Context, sub subscription.Subscription, plan subscription.Plan, metric subscription.Metric, delta int64) (Result, error) {
	limit := plan.LimitFor(metric)
	res := Result{Decision: Allowed, Metric: metric, Requested: delta, Limit: limit}

	if limit.Soft == subscription.Unlimited && limit.Hard == subscription.Unlimited {
		return res, nil
	}

	current, err := m.current(ctx, sub.TenantID, metric)
	if err != nil {
		return Result{}, err
	}
	res.Current = current

	total := current + delta
	switch {
	case limit.Hard != subscription.Unlimited && total > limit.Hard:
		res.Decision = Denied
	case limit.Soft != subscription.Unlimited && total > limit.Soft:
		res.Decision = AllowedWithWarning
	}
	return res, nil
}

func (m *monitor) Enforce(ctx context.Context, sub subscription.Subscription, plan subscription.Plan, metric subscription.Metric, delta int64) (Result, error) {
	res, err := m.CheckUsageLimits(ctx, sub, plan, metric, delta)
	if err != nil {
		return res, err
	}
	if res.Decision == Denied {
		return res, fmt.Errorf("%w: %s would reach %d of %d", ErrUsageLimitExceeded, metric, res.Projected(), res.Limit.Hard)
	}
	if res.Decision == AllowedWithWarning {
		m.log.InfoContext(ctx, "usage above soft limit",
			logger.TenantID(sub.TenantID),
			slog.String("metric", string(metric)),
			slog.Int64("projected", res.Projected()),
			slog.Int64("soft_limit", res.Limit.Soft))
	}
	return res, nil
}

func (m *monitor) RecordUsage(ctx context.Context, tenantID uuid.UUID, metric subscription.Metric, delta int64) (int64, error) {
	v, err := m.store.Increment(ctx, tenantID, metric, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to record usage of %s: %w", metric, err)
	}
	return v, nil
}

func (m *monitor) Usage(ctx context.Context, tenantID uuid.UUID, plan subscription.Plan) (map[subscription.Metric]Info, error) {
	out := make(map[subscription.Metric]Info, len(plan.Limits))
	for metric, limit := range plan.Limits {
		current, err := m.current(ctx, tenantID, metric)
		if err != nil {
			return nil, err
		}
		out[metric] = Info{Current: current, Limit: limit, Percent: percentOf(current, limit.Hard)}
	}
	return out, nil
}

func (m *monitor) CalculateUsageBasedCharges(ctx context.Context, sub subscription.Subscription, plan subscription.Plan) (subscription.Money, error) {
	total := subscription.Money{Currency: plan.Price.Currency}
	for metric, rate := range plan.Overage {
		current, err := m.current(ctx, sub.TenantID, metric)
		if err != nil {
			return subscription.Money{}, err
		}
		if over := current - rate.Included; over > 0 {
			total.Amount += over * rate.UnitPrice
		}
	}
	return total, nil
}

func (m *monitor) ExceededHardLimits(ctx context.Context, tenantID uuid.UUID, plan subscription.Plan) ([]subscription.Metric, error) {
	var exceeded []subscription.Metric
	for metric, limit := range plan.Limits {
		if limit.Hard == subscription.Unlimited {
			continue
		}
		current, err := m.current(ctx, tenantID, metric)
		if err != nil {
			return nil, err
		}
		if current > limit.Hard {
			exceeded = append(exceeded, metric)
		}
	}
	slices.Sort(exceeded)
	return exceeded, nil
}

func (m *monitor) ResetPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) error {
	if err := m.store.Reset(ctx, tenantID, periodStart); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}
