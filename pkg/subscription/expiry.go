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

// ExpiryOutcome is the result of processing one subscription whose period ended.
type ExpiryOutcome string

const (
	OutcomeRenewed   ExpiryOutcome = "renewed"
	OutcomePending   ExpiryOutcome = "pending"
	OutcomeSuspended ExpiryOutcome = "suspended"
	OutcomeExpired   ExpiryOutcome = "expired"
	OutcomeInGrace   ExpiryOutcome = "in_grace"
	OutcomeSkipped   ExpiryOutcome = "skipped" // no longer due, handled concurrently
)

// ExpiryReport summarizes a CheckExpired run.
type ExpiryReport struct {
	Scanned   int
	Renewed   int
	Pending   int
	Suspended int
	Expired   int
	InGrace   int
	Skipped   int
	Failed    int
	Errors    []error
}

// Add counts one outcome.
func (r *ExpiryReport) Add(outcome ExpiryOutcome) {
	r.Scanned++
	switch outcome {
	case OutcomeRenewed:
		r.Renewed++
	case OutcomePending:
		r.Pending++
	case OutcomeSuspended:
		r.Suspended++
	case OutcomeExpired:
		r.Expired++
	case OutcomeInGrace:
		r.InGrace++
	default:
		r.Skipped++
	}
}

func (s *service) CheckExpired(ctx context.Context) (ExpiryReport, error) {
	var report ExpiryReport
	filter := DueFilter{Kind: DueForExpiry, Before: s.now().UTC(), Limit: s.cfg.BatchSize}

	for {
		batch, err := s.store.ListDue(ctx, filter)
		if err != nil {
			return report, fmt.Errorf("failed to list expired subscriptions: %w", err)
		}

		for _, due := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			outcome, err := s.ProcessExpired(ctx, due.ID)
			if err != nil {
				report.Scanned++
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("subscription %s: %w", due.ID, err))
				continue
			}
			report.Add(outcome)
		}

		if len(batch) < filter.Limit {
			return report, nil
		}
		filter.After = batch[len(batch)-1].ID
	}
}

func (s *service) ProcessExpired(ctx context.Context, id uuid.UUID) (ExpiryOutcome, error) {
	var outcome ExpiryOutcome
	_, err := s.withSubscription(ctx, id, func(sub Subscription, now time.Time) (Subscription, error) {
		var err error
		outcome, err = s.processExpiredLocked(ctx, sub, now)
		return Subscription{}, err
	})
	return outcome, err
}

// processExpiredLocked renews an auto-renewing subscription while its grace
// period lasts and expires it otherwise. Manual subscriptions stay active
// until the grace period is over.
func (s *service) processExpiredLocked(ctx context.Context, sub Subscription, now time.Time) (ExpiryOutcome, error) {
	if (sub.Status != StatusActive && sub.Status != StatusTrial) || !sub.IsExpired(now) {
		return OutcomeSkipped, nil
	}

	plan, err := s.catalog.Plan(ctx, sub.PlanID)
	if err != nil && !errors.Is(err, ErrPlanNotFound) {
		return "", fmt.Errorf("failed to load plan %q: %w", sub.PlanID, err)
	}
	graceExhausted := now.After(sub.CurrentPeriodEnd.AddDate(0, 0, plan.GracePeriodDays))

	if sub.AutoRenew && !graceExhausted {
		renewed, err := s.renewLocked(ctx, sub, now)
		switch {
		case errors.Is(err, ErrRetriesExhausted):
			if renewed.Status == StatusExpired {
				return OutcomeExpired, nil
			}
			return OutcomeSuspended, nil
		case err != nil:
			return "", err
		case renewed.Status == StatusPending:
			return OutcomePending, nil
		default:
			return OutcomeRenewed, nil
		}
	}

	if !graceExhausted && sub.IsInGracePeriod(now, plan.GracePeriodDays) {
		return OutcomeInGrace, nil
	}

	m := newMutation(sub, now)
	if err := m.transition(EventExpire); err != nil {
		return "", err
	}
	m.after.NextPaymentDate = nil
	m.after.ScheduledPlanID = ""
	s.record(ctx, m, ActionExpired,
		audit.WithDetail("period_end", sub.CurrentPeriodEnd),
		audit.WithDetail("grace_period_days", plan.GracePeriodDays),
		audit.WithDetail("auto_renew", sub.AutoRenew))
	m.notices = append(m.notices, Notice{
		Kind:           NoticeSubscriptionExpired,
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		OccurredAt:     now,
	})

	if _, err := s.commit(ctx, m); err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "subscription expired",
		logger.SubscriptionID(sub.ID), logger.TenantID(sub.TenantID), logger.PlanID(sub.PlanID))
	return OutcomeExpired, nil
}
