package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/identity"
)

// Store persists subscriptions together with their audit trail, payment
// attempts and credits.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Subscription, error)
	// GetByTenant returns the tenant's non-terminal subscription.
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (Subscription, error)
	// Apply writes every part of the change atomically.
	// Returns ErrConcurrentUpdate when the stored version differs from
	// ExpectedVersion and ErrDuplicateSubscription when Create is set and the
	// tenant already has a non-terminal subscription.
	Apply(ctx context.Context, change Change) error
	// ListDue returns subscriptions matching the filter ordered by ID.
	ListDue(ctx context.Context, filter DueFilter) ([]Subscription, error)
	Attempts(ctx context.Context, subscriptionID uuid.UUID) ([]PaymentAttempt, error)
	// Credits returns credits usable at now, oldest first.
	Credits(ctx context.Context, subscriptionID uuid.UUID, now time.Time) ([]Credit, error)
	AuditTrail(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error)
}

// Change is the unit of work committed by Store.Apply.
type Change struct {
	Subscription    Subscription
	ExpectedVersion int64 // ignored when Create is set
	Create          bool
	Audit           []audit.Entry
	Attempts        []PaymentAttempt
	NewCredits      []Credit
	ConsumedCredits []uuid.UUID
}

// DueKind selects which subscriptions ListDue returns.
type DueKind int

const (
	// DueForExpiry selects active and trial subscriptions whose period ended before Before.
	DueForExpiry DueKind = iota
	// DueForRetry selects pending subscriptions whose next payment date is not after Before.
	DueForRetry
)

// DueFilter pages through due subscriptions with a keyset cursor.
type DueFilter struct {
	Kind     DueKind
	Before   time.Time
	TenantID uuid.UUID // optional
	After    uuid.UUID // cursor: return IDs strictly greater
	Limit    int
}

// Matches reports whether s satisfies the filter, ignoring the cursor and limit.
func (f DueFilter) Matches(s Subscription) bool {
	if f.TenantID != uuid.Nil && s.TenantID != f.TenantID {
		return false
	}
	switch f.Kind {
	case DueForExpiry:
		return (s.Status == StatusActive || s.Status == StatusTrial) && s.CurrentPeriodEnd.Before(f.Before)
	case DueForRetry:
		return s.Status == StatusPending && s.NextPaymentDate != nil && !s.NextPaymentDate.After(f.Before)
	default:
		return false
	}
}

// PlanCatalog resolves plans by ID. Returns ErrPlanNotFound for unknown IDs.
type PlanCatalog interface {
	Plan(ctx context.Context, id string) (Plan, error)
}

// ChargeRequest describes a single charge.
type ChargeRequest struct {
	IdempotencyKey string
	SubscriptionID uuid.UUID
	TenantID       uuid.UUID
	PlanID         string
	Amount         Money
	PaymentMethod  string
	Purpose        Purpose
	Description    string
}

// ChargeResult is the gateway's answer. A decline is a result, not an error;
// errors are reserved for transport or gateway failures.
type ChargeResult struct {
	TransactionID string
	Declined      bool
	DeclineReason string
}

// PaymentGateway charges a stored payment method.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// TenantResolver returns the tenant attributes plan eligibility depends on.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (identity.Profile, error)
}

// UsageMeter exposes metered usage to the lifecycle.
type UsageMeter interface {
	// CalculateUsageBasedCharges returns the overage for the current period.
	CalculateUsageBasedCharges(ctx context.Context, sub Subscription, plan Plan) (Money, error)
	// ExceededHardLimits lists metrics whose current usage is above plan's hard limits.
	ExceededHardLimits(ctx context.Context, tenantID uuid.UUID, plan Plan) ([]Metric, error)
	// ResetPeriod clears the counters when a new period starts.
	ResetPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) error
}

// Locker provides mutual exclusion per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// NoticeKind is the type of a dunning notification.
type NoticeKind string

const (
	NoticePaymentFailed       NoticeKind = "payment_failed"
	NoticeRetriesExhausted    NoticeKind = "payment_retries_exhausted"
	NoticeSubscriptionExpired NoticeKind = "subscription_expired"
)

// Notice is delivered to the tenant after a commit.
type Notice struct {
	Kind           NoticeKind
	TenantID       uuid.UUID
	SubscriptionID uuid.UUID
	PlanID         string
	Amount         Money
	AttemptNumber  int
	NextAttempt    *time.Time
	Reason         FailureReason
	OccurredAt     time.Time
}

// Notifier delivers notices. Delivery is best effort; errors are logged.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Observer is told about committed state changes, e.g. to export metrics.
type Observer interface {
	TransitionApplied(from, to Status, event Event)
	PaymentAttempted(attempt PaymentAttempt)
}

type noopMeter struct{}

func (noopMeter) CalculateUsageBasedCharges(_ context.Context, _ Subscription, plan Plan) (Money, error) {
	return Money{Currency: plan.Price.Currency}, nil
}

func (noopMeter) ExceededHardLimits(context.Context, uuid.UUID, Plan) ([]Metric, error) {
	return nil, nil
}

func (noopMeter) ResetPeriod(context.Context, uuid.UUID, time.Time) error { return nil }
