package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// extendWindowDays is how close to the period end a subscription must be to renew in advance.
const extendWindowDays = 30

func (s *service) CreateSubscription(ctx context.Context, tenantID uuid.UUID, planID string, opts CreateOptions) (Subscription, error) {
	plan, err := s.eligiblePlan(ctx, tenantID, planID)
	if err != nil {
		s.log.InfoContext(ctx, "subscription request rejected",
			logger.TenantID(tenantID), logger.PlanID(planID), logger.Error(err))
		return Subscription{}, err
	}

	unlock, err := s.locker.Lock(ctx, "tenant:"+tenantID.String())
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to lock tenant: %w", err)
	}
	defer unlock()

	if _, err := s.store.GetByTenant(ctx, tenantID); err == nil {
		return Subscription{}, ErrDuplicateSubscription
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return Subscription{}, err
	}

	now := s.now().UTC()
	sub := Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   plan.Interval.AddTo(now, 1),
		MaxPaymentRetries:  s.cfg.Retry.MaxPaymentRetries,
		AutoRenew:          !opts.ManualRenewal,
		PaymentMethod:      opts.PaymentMethod,
	}
	if opts.MaxPaymentRetries > 0 {
		sub.MaxPaymentRetries = opts.MaxPaymentRetries
	}

	if opts.Trial {
		days := opts.TrialDays
		if days <= 0 {
			days = plan.TrialDays
		}
		if days > 0 {
			sub.Status = StatusTrial
			sub.CurrentPeriodEnd = now.AddDate(0, 0, days)
			sub.TrialEndsAt = timePtr(sub.CurrentPeriodEnd)
		}
	}

	m := &mutation{after: sub, now: now, create: true}
	s.record(ctx, m, ActionCreated, audit.WithDetail("plan_id", plan.ID))

	created, err := s.commit(ctx, m)
	if err != nil {
		return Subscription{}, err
	}

	s.log.InfoContext(ctx, "subscription created",
		logger.SubscriptionID(created.ID),
		logger.TenantID(tenantID),
		logger.PlanID(plan.ID),
		logger.Status(created.Status))
	return created, nil
}

func (s *service) RenewSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		switch sub.Status {
		case StatusActive:
			if !s.renewalDue(sub, now) {
				return sub, nil
			}
		case StatusPending:
		default:
			return Subscription{}, s.reject(ctx, "renew", sub,
				fmt.Errorf("%w: cannot renew a %s subscription", ErrInvalidState, sub.Status))
		}
		return s.renewLocked(ctx, sub, now)
	})
}

// renewalDue reports whether now is within the renewal lead time of the period end.
func (s *service) renewalDue(sub Subscription, now time.Time) bool {
	return !now.Before(sub.CurrentPeriodEnd.Add(-s.cfg.RenewalLeadTime))
}

// renewLocked charges for the next period. A failed charge is handed to dunning
// and only ErrRetriesExhausted is reported as an error.
func (s *service) renewLocked(ctx context.Context, sub Subscription, now time.Time) (Subscription, error) {
	plan, err := s.catalog.Plan(ctx, sub.PlanID)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to load plan %q: %w", sub.PlanID, err)
	}

	m := newMutation(sub, now)
	nextPlan := plan

	if sub.ScheduledPlanID != "" {
		scheduled, err := s.catalog.Plan(ctx, sub.ScheduledPlanID)
		switch {
		case err == nil && scheduled.Available():
			nextPlan = scheduled
			m.after.PlanID = scheduled.ID
		case err == nil || errors.Is(err, ErrPlanNotFound):
			s.record(ctx, m, ActionPlanChangeFailed,
				audit.WithResult(audit.ResultFailure),
				audit.WithDetail("scheduled_plan_id", sub.ScheduledPlanID),
				audit.WithDetail("reason", "scheduled plan is no longer offered"))
		default:
			return Subscription{}, fmt.Errorf("failed to load scheduled plan %q: %w", sub.ScheduledPlanID, err)
		}
		m.after.ScheduledPlanID = ""
	}

	overage, err := s.meter.CalculateUsageBasedCharges(ctx, sub, plan)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to calculate usage charges: %w", err)
	}
	credits, err := s.store.Credits(ctx, sub.ID, now)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to load credits: %w", err)
	}
	amount, consumed := applyCredits(nextPlan.Price.Add(overage), credits, now)

	purpose := PurposeRenewal
	event := EventRenew
	switch sub.Status {
	case StatusTrial:
		purpose, event = PurposeTrialConversion, EventConvert
	case StatusPending:
		purpose = PurposeRetry
	}

	var attempt PaymentAttempt
	if amount.Amount > 0 {
		var cause error
		attempt, cause = s.charge(ctx, sub, amount, purpose, now)
		if attempt.ID == uuid.Nil {
			return Subscription{}, cause
		}
		ctx = outcomeContext(ctx)
		if cause != nil {
			return s.failPaymentLocked(ctx, sub, attempt, now)
		}
		m.attempts = append(m.attempts, attempt)
		m.after.LastPaymentDate = timePtr(now)
	}

	if err := m.transition(event); err != nil {
		return Subscription{}, err
	}
	base := m.after.CurrentPeriodEnd
	if now.After(base) {
		base = now
	}
	m.after.CurrentPeriodStart = base
	m.after.CurrentPeriodEnd = nextPlan.Interval.AddTo(base, 1)
	m.after.PaymentRetryCount = 0
	m.after.NextPaymentDate = nil
	m.consumed = consumed

	s.record(ctx, m, ActionRenewed,
		audit.WithDetail("amount", amount.Amount),
		audit.WithDetail("currency", amount.Currency),
		audit.WithDetail("overage", overage.Amount),
		audit.WithDetail("usage_period_start", sub.CurrentPeriodStart),
		audit.WithDetail("transaction_id", attempt.TransactionID),
		audit.WithDetail("credits_applied", len(consumed)))

	renewed, err := s.commit(ctx, m)
	if err != nil {
		return Subscription{}, err
	}
	s.resetUsage(ctx, renewed, overage)
	return renewed, nil
}

// resetUsage starts a new usage period after a committed renewal. A failure
// leaves the billed counters in place; the renewal audit entry carries the
// billed overage and usage period so the next invoice can be reconciled.
func (s *service) resetUsage(ctx context.Context, sub Subscription, billed Money) {
	if err := s.meter.ResetPeriod(ctx, sub.TenantID, sub.CurrentPeriodStart); err != nil {
		s.log.ErrorContext(ctx, "failed to reset usage counters",
			logger.SubscriptionID(sub.ID),
			logger.TenantID(sub.TenantID),
			slog.Int64("billed_overage", billed.Amount),
			slog.Time("period_start", sub.CurrentPeriodStart),
			logger.Error(err))
	}
}

func (s *service) CancelSubscription(ctx context.Context, id uuid.UUID, reason string) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		if sub.Status == StatusCanceled {
			return sub, nil
		}

		m := newMutation(sub, now)
		if err := m.transition(EventCancel); err != nil {
			return Subscription{}, s.reject(ctx, "cancel", sub, err)
		}
		m.after.CancelReason = reason
		m.after.CanceledAt = timePtr(now)
		m.after.AutoRenew = false
		m.after.NextPaymentDate = nil
		m.after.ScheduledPlanID = ""

		s.record(ctx, m, ActionCanceled, audit.WithDetail("reason", reason))
		return s.commit(ctx, m)
	})
}

func (s *service) SuspendSubscription(ctx context.Context, id uuid.UUID, reason string) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		m := newMutation(sub, now)
		if err := m.transition(EventSuspend); err != nil {
			return Subscription{}, s.reject(ctx, "suspend", sub, err)
		}
		m.after.SuspendReason = reason
		m.after.SuspendedAt = timePtr(now)
		m.after.NextPaymentDate = nil

		s.record(ctx, m, ActionSuspended, audit.WithDetail("reason", reason))
		return s.commit(ctx, m)
	})
}

func (s *service) Reactivate(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		m := newMutation(sub, now)
		if err := m.transition(EventReactivate); err != nil {
			return Subscription{}, s.reject(ctx, "reactivate", sub, err)
		}

		plan, err := s.catalog.Plan(ctx, sub.PlanID)
		if err != nil {
			return Subscription{}, fmt.Errorf("failed to load plan %q: %w", sub.PlanID, err)
		}

		attempt, cause := s.charge(ctx, sub, plan.Price, PurposeReactivation, now)
		if attempt.ID == uuid.Nil {
			return Subscription{}, cause
		}
		ctx = outcomeContext(ctx)
		if cause != nil {
			failed := newMutation(sub, now)
			failed.attempts = append(failed.attempts, attempt)
			s.record(ctx, failed, ActionReactivationFailed,
				audit.WithError(cause),
				audit.WithDetail("reason", string(attempt.Reason)))
			if _, err := s.commit(ctx, failed); err != nil {
				return Subscription{}, errors.Join(cause, err)
			}
			return Subscription{}, cause
		}

		m.attempts = append(m.attempts, attempt)
		m.after.CurrentPeriodStart = now
		m.after.CurrentPeriodEnd = plan.Interval.AddTo(now, 1)
		m.after.PaymentRetryCount = 0
		m.after.NextPaymentDate = nil
		m.after.LastPaymentDate = timePtr(now)
		m.after.SuspendReason = ""
		m.after.SuspendedAt = nil

		s.record(ctx, m, ActionReactivated,
			audit.WithDetail("amount", plan.Price.Amount),
			audit.WithDetail("transaction_id", attempt.TransactionID))

		reactivated, err := s.commit(ctx, m)
		if err != nil {
			return Subscription{}, err
		}
		s.resetUsage(ctx, reactivated, Money{})
		return reactivated, nil
	})
}

func (s *service) Extend(ctx context.Context, id uuid.UUID, periods int) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		if periods < 1 {
			return Subscription{}, s.reject(ctx, "extend", sub,
				fmt.Errorf("%w: periods must be positive", ErrExtendNotAllowed))
		}
		if sub.Status != StatusActive {
			return Subscription{}, s.reject(ctx, "extend", sub,
				fmt.Errorf("%w: cannot extend a %s subscription", ErrInvalidState, sub.Status))
		}
		if days := sub.RemainingDays(now); days >= extendWindowDays {
			return Subscription{}, s.reject(ctx, "extend", sub,
				fmt.Errorf("%w: %d days remain in the current period", ErrExtendNotAllowed, days))
		}

		plan, err := s.catalog.Plan(ctx, sub.PlanID)
		if err != nil {
			return Subscription{}, fmt.Errorf("failed to load plan %q: %w", sub.PlanID, err)
		}

		amount := plan.Price.Mul(int64(periods))
		m := newMutation(sub, now)

		attempt, cause := s.charge(ctx, sub, amount, PurposeExtension, now)
		if attempt.ID == uuid.Nil {
			return Subscription{}, cause
		}
		ctx = outcomeContext(ctx)
		m.attempts = append(m.attempts, attempt)

		if cause != nil {
			s.record(ctx, m, ActionPaymentFailed,
				audit.WithError(cause),
				audit.WithDetail("purpose", string(PurposeExtension)),
				audit.WithDetail("reason", string(attempt.Reason)))
			if _, err := s.commit(ctx, m); err != nil {
				return Subscription{}, errors.Join(cause, err)
			}
			return Subscription{}, cause
		}

		m.after.CurrentPeriodEnd = plan.Interval.AddTo(sub.CurrentPeriodEnd, periods)
		m.after.LastPaymentDate = timePtr(now)
		s.record(ctx, m, ActionExtended,
			audit.WithDetail("periods", periods),
			audit.WithDetail("amount", amount.Amount),
			audit.WithDetail("transaction_id", attempt.TransactionID))
		return s.commit(ctx, m)
	})
}

func (s *service) SetAutoRenew(ctx context.Context, id uuid.UUID, enabled bool) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		switch sub.Status {
		case StatusTrial, StatusActive, StatusPending:
		default:
			return Subscription{}, s.reject(ctx, "set_auto_renew", sub,
				fmt.Errorf("%w: cannot change auto-renew of a %s subscription", ErrInvalidState, sub.Status))
		}
		if sub.AutoRenew == enabled {
			return sub, nil
		}

		m := newMutation(sub, now)
		m.after.AutoRenew = enabled
		s.record(ctx, m, ActionAutoRenewToggled, audit.WithDetail("enabled", enabled))
		return s.commit(ctx, m)
	})
}
