package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// SuspendReasonRetriesExhausted is set when dunning gives up.
const SuspendReasonRetriesExhausted = "payment_retries_exhausted"

// RetryEngine schedules and runs payment retries for pending subscriptions.
type RetryEngine interface {
	// ShouldRetryPayment reports whether another retry may be scheduled.
	ShouldRetryPayment(sub Subscription) bool
	// NextRetryAt returns when retry number attempt (starting at 1) runs after a failure at now.
	NextRetryAt(attempt int, now time.Time) time.Time
	// HandleFailedPayment records a failure reported outside of this engine,
	// for example by a gateway webhook.
	HandleFailedPayment(ctx context.Context, id uuid.UUID, reason FailureReason) (Subscription, error)
	// AttemptCharge retries the payment of a pending subscription now.
	AttemptCharge(ctx context.Context, id uuid.UUID) (Subscription, error)
	// ChargeNow charges sub once without persisting anything.
	ChargeNow(ctx context.Context, sub Subscription, amount Money, purpose Purpose) (PaymentAttempt, error)
	// ProcessDueRetries attempts every pending subscription due at now.
	ProcessDueRetries(ctx context.Context, now time.Time) (RetryReport, error)
}

// RetryReport summarizes a ProcessDueRetries run.
type RetryReport struct {
	Attempted int
	Recovered int
	Pending   int
	Suspended int
	Failed    int
	Errors    []error
}

func (s *service) ShouldRetryPayment(sub Subscription) bool {
	if sub.Status.Terminal() || sub.Status == StatusSuspended {
		return false
	}
	return sub.PaymentRetryCount < sub.MaxPaymentRetries
}

func (s *service) NextRetryAt(attempt int, now time.Time) time.Time {
	return now.Add(s.backoff.NextInterval(attempt))
}

func (s *service) HandleFailedPayment(ctx context.Context, id uuid.UUID, reason FailureReason) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		if !CanTransition(sub.Status, EventChargeFailed) {
			return Subscription{}, s.reject(ctx, "handle_failed_payment", sub,
				fmt.Errorf("%w: %s subscriptions are not billed", ErrInvalidState, sub.Status))
		}
		attempt := PaymentAttempt{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			AttemptNumber:  sub.PaymentRetryCount,
			Purpose:        PurposeRenewal,
			Outcome:        OutcomeFailed,
			Reason:         reason,
			CreatedAt:      now,
		}
		if sub.Status == StatusPending {
			attempt.Purpose = PurposeRetry
		}
		return s.failPaymentLocked(ctx, sub, attempt, now)
	})
}

func (s *service) AttemptCharge(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		if sub.Status != StatusPending {
			return Subscription{}, s.reject(ctx, "attempt_charge", sub,
				fmt.Errorf("%w: only pending subscriptions are retried, got %s", ErrInvalidState, sub.Status))
		}
		return s.renewLocked(ctx, sub, now)
	})
}

func (s *service) ChargeNow(ctx context.Context, sub Subscription, amount Money, purpose Purpose) (PaymentAttempt, error) {
	return s.charge(ctx, sub, amount, purpose, s.now().UTC())
}

func (s *service) ProcessDueRetries(ctx context.Context, now time.Time) (RetryReport, error) {
	var report RetryReport
	filter := DueFilter{Kind: DueForRetry, Before: now, Limit: s.cfg.BatchSize}

	for {
		batch, err := s.store.ListDue(ctx, filter)
		if err != nil {
			return report, fmt.Errorf("failed to list due retries: %w", err)
		}

		for _, due := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Attempted++

			sub, err := s.AttemptCharge(ctx, due.ID)
			switch {
			case errors.Is(err, ErrRetriesExhausted):
				report.Suspended++
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("subscription %s: %w", due.ID, err))
			case sub.Status == StatusActive:
				report.Recovered++
			default:
				report.Pending++
			}
		}

		if len(batch) < filter.Limit {
			return report, nil
		}
		filter.After = batch[len(batch)-1].ID
	}
}

// failPaymentLocked records a failed attempt and advances dunning: the next
// retry is scheduled while retries remain, otherwise the subscription is
// suspended (trials expire) and ErrRetriesExhausted is returned.
func (s *service) failPaymentLocked(ctx context.Context, sub Subscription, attempt PaymentAttempt, now time.Time) (Subscription, error) {
	m := newMutation(sub, now)
	m.attempts = append(m.attempts, attempt)

	s.record(ctx, m, ActionPaymentFailed,
		audit.WithResult(audit.ResultFailure),
		audit.WithDetail("reason", string(attempt.Reason)),
		audit.WithDetail("purpose", string(attempt.Purpose)),
		audit.WithDetail("attempt_number", attempt.AttemptNumber),
		audit.WithDetail("amount", attempt.Amount.Amount),
		audit.WithDetail("error", attempt.Error))

	notice := Notice{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		Amount:         attempt.Amount,
		AttemptNumber:  sub.PaymentRetryCount + 1,
		Reason:         attempt.Reason,
		OccurredAt:     now,
	}

	if s.ShouldRetryPayment(sub) {
		if err := m.transition(EventChargeFailed); err != nil {
			return Subscription{}, err
		}
		m.after.PaymentRetryCount++
		next := s.NextRetryAt(m.after.PaymentRetryCount, now)
		m.after.NextPaymentDate = timePtr(next)
		// The entry was recorded before the counters moved.
		m.entries[len(m.entries)-1].After = m.after.Snapshot()

		notice.Kind = NoticePaymentFailed
		notice.NextAttempt = timePtr(next)
		m.notices = append(m.notices, notice)

		pending, err := s.commit(ctx, m)
		if err != nil {
			return Subscription{}, err
		}
		s.log.InfoContext(ctx, "payment retry scheduled",
			logger.SubscriptionID(sub.ID),
			logger.TenantID(sub.TenantID),
			logger.RetryCount(pending.PaymentRetryCount),
			logger.NextAttempt(next))
		return pending, nil
	}

	event := EventSuspend
	if sub.Status == StatusTrial {
		event = EventExpire
	}
	if err := m.transition(event); err != nil {
		return Subscription{}, err
	}
	m.after.NextPaymentDate = nil
	if event == EventSuspend {
		m.after.SuspendReason = SuspendReasonRetriesExhausted
		m.after.SuspendedAt = timePtr(now)
	}
	m.entries[len(m.entries)-1].After = m.after.Snapshot()
	s.record(ctx, m, ActionRetriesExhausted,
		audit.WithResult(audit.ResultFailure),
		audit.WithDetail("retries", sub.PaymentRetryCount))

	notice.Kind = NoticeRetriesExhausted
	m.notices = append(m.notices, notice)

	exhausted, err := s.commit(ctx, m)
	if err != nil {
		return Subscription{}, err
	}
	s.log.WarnContext(ctx, "payment retries exhausted",
		logger.SubscriptionID(sub.ID),
		logger.TenantID(sub.TenantID),
		logger.RetryCount(sub.PaymentRetryCount),
		logger.Status(exhausted.Status))
	return exhausted, ErrRetriesExhausted
}
