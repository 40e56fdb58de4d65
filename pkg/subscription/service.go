package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/backoff"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/identity"
	"github.com/dmitrymomot/billingcore/pkg/locker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Service manages the subscription lifecycle.
type Service interface {
	CreateSubscription(ctx context.Context, tenantID uuid.UUID, planID string, opts CreateOptions) (Subscription, error)
	RenewSubscription(ctx context.Context, id uuid.UUID) (Subscription, error)
	CancelSubscription(ctx context.Context, id uuid.UUID, reason string) (Subscription, error)
	SuspendSubscription(ctx context.Context, id uuid.UUID, reason string) (Subscription, error)
	Reactivate(ctx context.Context, id uuid.UUID) (Subscription, error)
	ChangePlan(ctx context.Context, id uuid.UUID, planID string, mode ChangeMode) (Subscription, error)
	Extend(ctx context.Context, id uuid.UUID, periods int) (Subscription, error)
	SetAutoRenew(ctx context.Context, id uuid.UUID, enabled bool) (Subscription, error)

	// CheckExpired processes every subscription whose period has ended.
	CheckExpired(ctx context.Context) (ExpiryReport, error)
	// ProcessExpired handles a single subscription found by CheckExpired or a sweep.
	ProcessExpired(ctx context.Context, id uuid.UUID) (ExpiryOutcome, error)

	Get(ctx context.Context, id uuid.UUID) (Subscription, error)
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (Subscription, error)
	IsInGracePeriod(ctx context.Context, id uuid.UUID) (bool, error)
	RemainingDays(ctx context.Context, id uuid.UUID) (int, error)
	ListAttempts(ctx context.Context, id uuid.UUID) ([]PaymentAttempt, error)
	AuditTrail(ctx context.Context, id uuid.UUID) ([]audit.Entry, error)

	// Dunning exposes the payment retry engine.
	Dunning() RetryEngine
}

// CreateOptions customizes a new subscription.
type CreateOptions struct {
	Trial             bool // start in trial for TrialDays or the plan's trial length
	TrialDays         int
	PaymentMethod     string
	ManualRenewal     bool // disables auto-renew
	MaxPaymentRetries int  // overrides the configured retry limit when positive
}

type service struct {
	store     Store
	catalog   PlanCatalog
	gateway   PaymentGateway
	payments  *breaker.Breaker
	tenants   TenantResolver
	meter     UsageMeter
	locker    Locker
	notifier  Notifier
	observers []Observer
	recorder  *audit.Recorder
	log       *slog.Logger
	now       func() time.Time
	cfg       Config
	backoff   backoff.Strategy
}

// NewService creates a new Service with the given dependencies.
// Panics if store, catalog, gateway or breakers is nil, or if the registry has
// no payment_service breaker.
func NewService(store Store, catalog PlanCatalog, gateway PaymentGateway, breakers *breaker.Registry, opts ...ServiceOption) Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: PlanCatalog is required")
	}
	if gateway == nil {
		panic("subscription: PaymentGateway is required")
	}
	if breakers == nil {
		panic("subscription: breaker registry is required")
	}

	s := &service{
		store:    store,
		catalog:  catalog,
		gateway:  gateway,
		payments: breakers.MustGet(breaker.PaymentService),
		meter:    noopMeter{},
		locker:   locker.NewMemory(),
		log:      slog.Default(),
		now:      time.Now,
		cfg:      DefaultConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.cfg = s.cfg.withDefaults()
	s.backoff = backoff.Exponential{
		InitialInterval: s.cfg.Retry.BaseInterval,
		MaxInterval:     s.cfg.Retry.MaxInterval,
		Multiplier:      2,
	}
	if s.recorder == nil {
		s.recorder = audit.NewRecorder(audit.WithClock(s.now))
	}
	s.log = s.log.With(logger.Component("subscription"))

	return s
}

func (s *service) Dunning() RetryEngine { return s }

func (s *service) Get(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return s.store.Get(ctx, id)
}

func (s *service) GetByTenant(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	return s.store.GetByTenant(ctx, tenantID)
}

func (s *service) IsInGracePeriod(ctx context.Context, id uuid.UUID) (bool, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	plan, err := s.catalog.Plan(ctx, sub.PlanID)
	if err != nil {
		return false, err
	}
	return sub.IsInGracePeriod(s.now(), plan.GracePeriodDays), nil
}

func (s *service) RemainingDays(ctx context.Context, id uuid.UUID) (int, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return sub.RemainingDays(s.now()), nil
}

func (s *service) ListAttempts(ctx context.Context, id uuid.UUID) ([]PaymentAttempt, error) {
	return s.store.Attempts(ctx, id)
}

func (s *service) AuditTrail(ctx context.Context, id uuid.UUID) ([]audit.Entry, error) {
	return s.store.AuditTrail(ctx, audit.Criteria{SubscriptionID: id})
}

// withSubscription loads the subscription under its lock and runs fn.
func (s *service) withSubscription(ctx context.Context, id uuid.UUID, fn func(sub Subscription, now time.Time) (Subscription, error)) (Subscription, error) {
	unlock, err := s.locker.Lock(ctx, "subscription:"+id.String())
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to lock subscription: %w", err)
	}
	defer unlock()

	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	return fn(sub, s.now().UTC())
}

// eligiblePlan returns the plan if the tenant may subscribe to it.
func (s *service) eligiblePlan(ctx context.Context, tenantID uuid.UUID, planID string) (Plan, error) {
	plan, err := s.catalog.Plan(ctx, planID)
	if err != nil {
		return Plan{}, errors.Join(ErrPlanUnavailable, err)
	}
	if !plan.Available() {
		return Plan{}, fmt.Errorf("%w: plan %q is not offered", ErrPlanUnavailable, planID)
	}
	if len(plan.Regions) == 0 && !plan.RequiresCompliance {
		return plan, nil
	}

	if s.tenants == nil {
		return Plan{}, fmt.Errorf("%w: plan %q requires a tenant profile", ErrPlanUnavailable, planID)
	}
	profile, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return Plan{}, errors.Join(ErrPlanUnavailable, err)
	}
	if !plan.AllowsRegion(profile.Region) {
		return Plan{}, fmt.Errorf("%w: plan %q is not offered in region %q", ErrPlanUnavailable, planID, profile.Region)
	}
	if plan.RequiresCompliance && !profile.HasCompliance(identity.ComplianceVerified) {
		return Plan{}, fmt.Errorf("%w: plan %q requires compliance verification", ErrPlanUnavailable, planID)
	}
	return plan, nil
}

// reject logs a validation failure. Rejected requests change nothing and are not audited.
func (s *service) reject(ctx context.Context, op string, sub Subscription, err error) error {
	s.log.InfoContext(ctx, "subscription request rejected",
		slog.String("operation", op),
		logger.SubscriptionID(sub.ID),
		logger.TenantID(sub.TenantID),
		logger.Status(sub.Status),
		logger.Error(err))
	return err
}
