package subscription_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/identity"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

var start = time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCatalog map[string]subscription.Plan

func (c fakeCatalog) Plan(_ context.Context, id string) (subscription.Plan, error) {
	p, ok := c[id]
	if !ok {
		return subscription.Plan{}, subscription.ErrPlanNotFound
	}
	return p, nil
}

func testPlans() fakeCatalog {
	usd := func(amount int64) subscription.Money { return subscription.Money{Amount: amount, Currency: "USD"} }
	return fakeCatalog{
		"basic": {
			ID: "basic", Name: "Basic", Price: usd(1000), Interval: subscription.BillingIntervalMonthly,
			IsActive: true, GracePeriodDays: 5, TrialDays: 14,
			Limits: map[subscription.Metric]subscription.Limit{subscription.MetricUsers: {Soft: 8, Hard: 10}},
		},
		"pro": {
			ID: "pro", Name: "Pro", Price: usd(3000), Interval: subscription.BillingIntervalMonthly,
			IsActive: true, GracePeriodDays: 5,
		},
		"legacy": {
			ID: "legacy", Name: "Legacy", Price: usd(500), Interval: subscription.BillingIntervalMonthly,
			IsActive: true, Discontinued: true,
		},
		"eu_only": {
			ID: "eu_only", Name: "EU", Price: usd(2000), Interval: subscription.BillingIntervalAnnual,
			IsActive: true, Regions: []string{"eu"},
		},
		"regulated": {
			ID: "regulated", Name: "Regulated", Price: usd(5000), Interval: subscription.BillingIntervalMonthly,
			IsActive: true, RequiresCompliance: true,
		},
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []subscription.ChargeRequest
	fn       func(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error)
}

func (g *fakeGateway) Charge(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	fn := g.fn
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return subscription.ChargeResult{TransactionID: fmt.Sprintf("txn_%d", n)}, nil
}

func (g *fakeGateway) set(fn func(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error)) {
	g.mu.Lock()
	g.fn = fn
	g.mu.Unlock()
}

func (g *fakeGateway) decline() {
	g.set(func(context.Context, subscription.ChargeRequest) (subscription.ChargeResult, error) {
		return subscription.ChargeResult{Declined: true, DeclineReason: "insufficient_funds"}, nil
	})
}

func (g *fakeGateway) approve() { g.set(nil) }

func (g *fakeGateway) calls() []subscription.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]subscription.ChargeRequest(nil), g.requests...)
}

type fakeMeter struct {
	mu       sync.Mutex
	exceeded map[string][]subscription.Metric
	overage  subscription.Money
	resets   int
	resetErr error
}

func (m *fakeMeter) CalculateUsageBasedCharges(context.Context, subscription.Subscription, subscription.Plan) (subscription.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overage, nil
}

func (m *fakeMeter) ExceededHardLimits(_ context.Context, _ uuid.UUID, plan subscription.Plan) ([]subscription.Metric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exceeded[plan.ID], nil
}

func (m *fakeMeter) ResetPeriod(context.Context, uuid.UUID, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return m.resetErr
}

type fakeResolver struct {
	profiles map[uuid.UUID]identity.Profile
	err      error
}

func (r *fakeResolver) Resolve(_ context.Context, tenantID uuid.UUID) (identity.Profile, error) {
	if r.err != nil {
		return identity.Profile{}, r.err
	}
	p, ok := r.profiles[tenantID]
	if !ok {
		return identity.Profile{}, identity.ErrTenantNotFound
	}
	return p, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []subscription.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice subscription.Notice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) kinds() []subscription.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]subscription.NoticeKind, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Kind)
	}
	return out
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	attempts    []subscription.PaymentAttempt
}

func (o *recordingObserver) TransitionApplied(from, to subscription.Status, event subscription.Event) {
	o.mu.Lock()
	o.transitions = append(o.transitions, fmt.Sprintf("%s-%s->%s", from, event, to))
	o.mu.Unlock()
}

func (o *recordingObserver) PaymentAttempted(a subscription.PaymentAttempt) {
	o.mu.Lock()
	o.attempts = append(o.attempts, a)
	o.mu.Unlock()
}

type fixture struct {
	svc      subscription.Service
	store    *subscription.MemoryStore
	catalog  fakeCatalog
	gateway  *fakeGateway
	meter    *fakeMeter
	resolver *fakeResolver
	notifier *recordingNotifier
	observer *recordingObserver
	clock    *fakeClock
	breakers *breaker.Registry
}

func defaultPaymentBreaker() breaker.Config {
	return breaker.Config{FailureThreshold: 10, Cooldown: 2 * time.Minute, CallTimeout: time.Second}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithBreaker(t, defaultPaymentBreaker())
}

func newFixtureWithBreaker(t *testing.T, payment breaker.Config) *fixture {
	t.Helper()

	f := &fixture{
		store:    subscription.NewMemoryStore(),
		catalog:  testPlans(),
		gateway:  &fakeGateway{},
		meter:    &fakeMeter{exceeded: map[string][]subscription.Metric{}},
		resolver: &fakeResolver{profiles: map[uuid.UUID]identity.Profile{}},
		notifier: &recordingNotifier{},
		observer: &recordingObserver{},
		clock:    &fakeClock{now: start},
	}

	f.breakers = breaker.NewRegistry(breaker.WithClock(f.clock.Now))
	f.breakers.Register(breaker.PaymentService, payment)

	f.svc = subscription.NewService(f.store, f.catalog, f.gateway, f.breakers,
		subscription.WithClock(f.clock.Now),
		subscription.WithUsageMeter(f.meter),
		subscription.WithTenantResolver(f.resolver),
		subscription.WithNotifier(f.notifier),
		subscription.WithObserver(f.observer),
	)
	return f
}

func (f *fixture) create(t *testing.T, planID string, opts subscription.CreateOptions) subscription.Subscription {
	t.Helper()
	sub, err := f.svc.CreateSubscription(context.Background(), uuid.New(), planID, opts)
	require.NoError(t, err)
	return sub
}

func (f *fixture) actions(t *testing.T, id uuid.UUID) []string {
	t.Helper()
	entries, err := f.svc.AuditTrail(context.Background(), id)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
