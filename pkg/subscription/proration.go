package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// Prorate returns the price difference for the unused part of the period:
// (newPrice - oldPrice) * remaining / periodLength, truncated toward zero.
// A negative result is owed to the tenant.
func Prorate(oldPrice, newPrice Money, periodStart, periodEnd, now time.Time) Money {
	period := int64(periodEnd.Sub(periodStart) / time.Second)
	if period <= 0 {
		return Money{Currency: newPrice.Currency}
	}
	remaining := int64(periodEnd.Sub(now) / time.Second)
	remaining = max(0, min(remaining, period))

	diff := newPrice.Amount - oldPrice.Amount
	return Money{Amount: diff * remaining / period, Currency: newPrice.Currency}
}

func (s *service) ChangePlan(ctx context.Context, id uuid.UUID, planID string, mode ChangeMode) (Subscription, error) {
	if !mode.Valid() {
		return Subscription{}, fmt.Errorf("%w: %q", ErrInvalidChangeMode, mode)
	}

	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		if sub.Status != StatusActive && sub.Status != StatusTrial {
			return Subscription{}, s.reject(ctx, "change_plan", sub,
				fmt.Errorf("%w: cannot change the plan of a %s subscription", ErrInvalidState, sub.Status))
		}
		if sub.PlanID == planID {
			return Subscription{}, s.reject(ctx, "change_plan", sub,
				fmt.Errorf("%w: already on plan %q", ErrInvalidState, planID))
		}

		target, err := s.eligiblePlan(ctx, sub.TenantID, planID)
		if err != nil {
			return Subscription{}, s.reject(ctx, "change_plan", sub, err)
		}

		exceeded, err := s.meter.ExceededHardLimits(ctx, sub.TenantID, target)
		if err != nil {
			return Subscription{}, fmt.Errorf("failed to check usage: %w", err)
		}
		if len(exceeded) > 0 {
			return Subscription{}, s.reject(ctx, "change_plan", sub,
				fmt.Errorf("%w: %v", ErrUsageExceedsNewPlan, exceeded))
		}

		m := newMutation(sub, now)

		if mode == ChangeEndOfCycle {
			m.after.ScheduledPlanID = target.ID
			s.record(ctx, m, ActionPlanChangeScheduled,
				audit.WithDetail("from_plan_id", sub.PlanID),
				audit.WithDetail("to_plan_id", target.ID))
			return s.commit(ctx, m)
		}

		m.after.PlanID = target.ID
		m.after.ScheduledPlanID = ""

		if sub.Status == StatusTrial {
			s.record(ctx, m, ActionPlanChanged,
				audit.WithDetail("from_plan_id", sub.PlanID),
				audit.WithDetail("to_plan_id", target.ID))
			return s.commit(ctx, m)
		}

		if err := m.transition(EventChangePlan); err != nil {
			return Subscription{}, err
		}
		current, err := s.catalog.Plan(ctx, sub.PlanID)
		if err != nil {
			return Subscription{}, fmt.Errorf("failed to load plan %q: %w", sub.PlanID, err)
		}
		amount := Prorate(current.Price, target.Price, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, now)

		details := []audit.EntryOption{
			audit.WithDetail("from_plan_id", sub.PlanID),
			audit.WithDetail("to_plan_id", target.ID),
			audit.WithDetail("prorated_amount", amount.Amount),
		}

		switch {
		case amount.Amount > 0:
			attempt, cause := s.charge(ctx, sub, amount, PurposePlanChange, now)
			if attempt.ID == uuid.Nil {
				return Subscription{}, cause
			}
			ctx = outcomeContext(ctx)
			if cause != nil {
				failed := newMutation(sub, now)
				failed.attempts = append(failed.attempts, attempt)
				s.record(ctx, failed, ActionPlanChangeFailed,
					append(details, audit.WithError(cause), audit.WithDetail("reason", string(attempt.Reason)))...)
				if _, err := s.commit(ctx, failed); err != nil {
					return Subscription{}, errors.Join(ErrPlanChangeFailed, cause, err)
				}
				return Subscription{}, errors.Join(ErrPlanChangeFailed, cause)
			}
			m.attempts = append(m.attempts, attempt)
			m.after.LastPaymentDate = timePtr(now)
			details = append(details, audit.WithDetail("transaction_id", attempt.TransactionID))

		case amount.Amount < 0:
			credit := Credit{
				ID:             uuid.New(),
				SubscriptionID: sub.ID,
				Amount:         Money{Amount: -amount.Amount, Currency: amount.Currency},
				Reason:         CreditReasonProration,
				ExpiresAt:      now.Add(creditLifetime),
				CreatedAt:      now,
			}
			m.credits = append(m.credits, credit)
			s.record(ctx, m, ActionCreditIssued,
				audit.WithDetail("credit_id", credit.ID.String()),
				audit.WithDetail("amount", credit.Amount.Amount),
				audit.WithDetail("currency", credit.Amount.Currency))
		}

		s.record(ctx, m, ActionPlanChanged, details...)
		return s.commit(ctx, m)
	})
}
