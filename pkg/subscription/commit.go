package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Audit actions.
const (
	ActionCreated             = "subscription.created"
	ActionRenewed             = "subscription.renewed"
	ActionCanceled            = "subscription.canceled"
	ActionSuspended           = "subscription.suspended"
	ActionReactivated         = "subscription.reactivated"
	ActionReactivationFailed  = "subscription.reactivation_failed"
	ActionPlanChanged         = "subscription.plan_changed"
	ActionPlanChangeScheduled = "subscription.plan_change_scheduled"
	ActionPlanChangeFailed    = "subscription.plan_change_failed"
	ActionExpired             = "subscription.expired"
	ActionExtended            = "subscription.extended"
	ActionAutoRenewToggled    = "subscription.auto_renew_toggled"
	ActionPaymentFailed       = "payment.failed"
	ActionRetriesExhausted    = "payment.retries_exhausted"
	ActionCreditIssued        = "credit.issued"
)

// mutation collects everything one operation writes.
type mutation struct {
	before   Subscription
	after    Subscription
	now      time.Time
	create   bool
	event    Event // empty when the status machine is not involved
	entries  []audit.Entry
	attempts []PaymentAttempt
	credits  []Credit
	consumed []uuid.UUID
	notices  []Notice
}

func newMutation(sub Subscription, now time.Time) *mutation {
	return &mutation{before: sub.Clone(), after: sub.Clone(), now: now}
}

// record appends an audit entry with before/after snapshots of the mutation.
// Call it after the subscription fields have been updated.
func (s *service) record(ctx context.Context, m *mutation, action string, opts ...audit.EntryOption) {
	base := []audit.EntryOption{
		audit.WithSubscription(m.after.ID, m.after.TenantID),
		audit.WithAfter(m.after.Snapshot()),
	}
	if !m.create {
		base = append(base, audit.WithBefore(m.before.Snapshot()))
	}
	m.entries = append(m.entries, s.recorder.Record(ctx, action, append(base, opts...)...))
}

// commit persists the mutation and then runs the best-effort side effects.
func (s *service) commit(ctx context.Context, m *mutation) (Subscription, error) {
	sub := m.after
	sub.UpdatedAt = m.now
	if m.create {
		sub.CreatedAt = m.now
		sub.Version = 1
	} else {
		sub.Version = m.before.Version + 1
	}

	err := s.store.Apply(ctx, Change{
		Subscription:    sub,
		ExpectedVersion: m.before.Version,
		Create:          m.create,
		Audit:           m.entries,
		Attempts:        m.attempts,
		NewCredits:      m.credits,
		ConsumedCredits: m.consumed,
	})
	if err != nil {
		return Subscription{}, err
	}

	if m.event != "" && m.before.Status != sub.Status {
		s.log.InfoContext(ctx, "subscription status changed",
			logger.SubscriptionID(sub.ID),
			logger.TenantID(sub.TenantID),
			logger.Transition(m.before.Status, sub.Status),
			slog.String("event", string(m.event)))
	}
	for _, o := range s.observers {
		if m.event != "" {
			o.TransitionApplied(m.before.Status, sub.Status, m.event)
		}
		for _, a := range m.attempts {
			o.PaymentAttempted(a)
		}
	}
	if s.notifier != nil {
		for _, n := range m.notices {
			if err := s.notifier.Notify(ctx, n); err != nil {
				s.log.WarnContext(ctx, "failed to deliver notice",
					logger.SubscriptionID(sub.ID),
					slog.String("notice", string(n.Kind)),
					logger.Error(err))
			}
		}
	}

	return sub, nil
}

// transition moves the mutation to the status event leads to.
func (m *mutation) transition(event Event) error {
	to, err := nextStatus(m.before.Status, event)
	if err != nil {
		return err
	}
	m.after.Status = to
	m.event = event
	return nil
}

// charge runs a single gateway call through the payment_service breaker.
// The returned error is the failure cause, nil on success. Cancellation of ctx
// is returned as is and no attempt is produced; an expired ctx deadline yields
// a failed attempt with ReasonTimeout.
func (s *service) charge(ctx context.Context, sub Subscription, amount Money, purpose Purpose, now time.Time) (PaymentAttempt, error) {
	attempt := PaymentAttempt{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		AttemptNumber:  sub.PaymentRetryCount,
		Amount:         amount,
		Purpose:        purpose,
		CreatedAt:      now,
	}

	req := ChargeRequest{
		IdempotencyKey: fmt.Sprintf("%s:%s:%d:%d", sub.ID, purpose, sub.Version, sub.PaymentRetryCount),
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		PlanID:         sub.PlanID,
		Amount:         amount,
		PaymentMethod:  sub.PaymentMethod,
		Purpose:        purpose,
		Description:    fmt.Sprintf("Subscription %s: %s", sub.PlanID, purpose),
	}

	res, err := breaker.Execute(ctx, s.payments, func(ctx context.Context) (ChargeResult, error) {
		return s.gateway.Charge(ctx, req)
	})
	if errors.Is(ctx.Err(), context.Canceled) {
		return PaymentAttempt{}, ctx.Err()
	}

	var cause error
	switch {
	case err != nil:
		attempt.Reason = failureReason(err)
		if attempt.Reason == ReasonGatewayError {
			cause = errors.Join(ErrPaymentGateway, err)
		} else {
			cause = err
		}
	case res.Declined:
		attempt.Reason = ReasonDeclined
		cause = ErrPaymentDeclined
		if res.DeclineReason != "" {
			cause = fmt.Errorf("%w: %s", ErrPaymentDeclined, res.DeclineReason)
		}
	}

	if cause != nil {
		attempt.Outcome = OutcomeFailed
		attempt.Error = cause.Error()
		s.log.WarnContext(ctx, "payment attempt failed",
			logger.SubscriptionID(sub.ID),
			logger.TenantID(sub.TenantID),
			logger.Dependency(breaker.PaymentService),
			slog.String("reason", string(attempt.Reason)),
			logger.Error(cause))
		return attempt, cause
	}

	attempt.Outcome = OutcomeSucceeded
	attempt.TransactionID = res.TransactionID
	return attempt, nil
}

// outcomeContext keeps the result of a charge persistable when the caller's
// deadline expired during the gateway call.
func outcomeContext(ctx context.Context) context.Context {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return context.WithoutCancel(ctx)
	}
	return ctx
}

func failureReason(err error) FailureReason {
	switch {
	case breaker.IsCircuitOpen(err):
		return ReasonCircuitOpen
	case breaker.IsTimeout(err):
		return ReasonTimeout
	default:
		return ReasonGatewayError
	}
}
