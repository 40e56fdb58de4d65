package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Lister pages through due subscriptions. subscription.Store implements it.
type Lister interface {
	ListDue(ctx context.Context, filter subscription.DueFilter) ([]subscription.Subscription, error)
}

// Sweeper runs the periodic expiry and payment retry passes. Each
// subscription is processed as its own unit through the service, which
// re-checks state under the subscription lock, so overlapping runs are safe.
type Sweeper struct {
	store   Lister
	service subscription.Service
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	hooks   []func(Report)
}

// New creates a sweeper.
func New(store Lister, service subscription.Service, opts ...Option) *Sweeper {
	if store == nil {
		panic("sweep: store cannot be nil")
	}
	if service == nil {
		panic("sweep: subscription service cannot be nil")
	}
	s := &Sweeper{
		store:   store,
		service: service,
		cfg:     Config{}.withDefaults(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("sweep"))
	return s
}

// Run processes subscriptions whose period has ended: renewal, dunning,
// grace or expiry, as decided by the lifecycle.
func (s *Sweeper) Run(ctx context.Context, opts ...RunOption) (Report, error) {
	return s.run(ctx, KindExpiry, subscription.DueForExpiry, opts, func(ctx context.Context, r *Report, id uuid.UUID) error {
		outcome, err := s.service.ProcessExpired(ctx, id)
		if err != nil {
			return err
		}
		switch outcome {
		case subscription.OutcomeRenewed:
			r.Renewed++
		case subscription.OutcomePending:
			r.Pending++
		case subscription.OutcomeSuspended:
			r.Suspended++
		case subscription.OutcomeExpired:
			r.Expired++
		case subscription.OutcomeInGrace:
			r.InGrace++
		default:
			r.Skipped++
		}
		return nil
	})
}

// RunRetries charges pending subscriptions whose next retry is due.
func (s *Sweeper) RunRetries(ctx context.Context, opts ...RunOption) (Report, error) {
	dunning := s.service.Dunning()
	return s.run(ctx, KindRetry, subscription.DueForRetry, opts, func(ctx context.Context, r *Report, id uuid.UUID) error {
		sub, err := dunning.AttemptCharge(ctx, id)
		switch {
		case errors.Is(err, subscription.ErrRetriesExhausted):
			r.Suspended++
		case errors.Is(err, subscription.ErrInvalidState):
			r.Skipped++ // left pending concurrently
		case err != nil:
			return err
		case sub.Status == subscription.StatusActive:
			r.Recovered++
		default:
			r.Pending++
		}
		return nil
	})
}

type processFunc func(ctx context.Context, r *Report, id uuid.UUID) error

func (s *Sweeper) run(ctx context.Context, kind Kind, due subscription.DueKind, opts []RunOption, process processFunc) (Report, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	start := s.now().UTC()
	report := Report{Kind: kind, DryRun: ro.dryRun, StartedAt: start}
	filter := subscription.DueFilter{Kind: due, Before: start, TenantID: ro.tenantID, Limit: s.cfg.BatchSize}

	var mu sync.Mutex
	err := func() error {
		for {
			batch, err := s.store.ListDue(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list due subscriptions: %w", err)
			}

			if ro.dryRun {
				for _, sub := range batch {
					report.Scanned++
					report.Due = append(report.Due, sub.ID)
				}
			} else {
				g := new(errgroup.Group)
				g.SetLimit(s.cfg.Concurrency)
				for _, sub := range batch {
					if ctx.Err() != nil {
						break
					}
					g.Go(func() error {
						var r Report
						err := process(ctx, &r, sub.ID)

						mu.Lock()
						defer mu.Unlock()
						report.Scanned++
						if err != nil {
							report.Failed++
							report.Errors = append(report.Errors, fmt.Errorf("subscription %s: %w", sub.ID, err))
							s.logger.ErrorContext(ctx, "sweep item failed",
								slog.String("kind", string(kind)), logger.SubscriptionID(sub.ID), logger.Error(err))
							return nil
						}
						report.merge(r)
						return nil
					})
				}
				_ = g.Wait()
			}

			if err := ctx.Err(); err != nil {
				return err
			}
			if len(batch) < filter.Limit {
				return nil
			}
			filter.After = batch[len(batch)-1].ID
		}
	}()

	report.Duration = s.now().Sub(start)
	s.logger.InfoContext(ctx, "sweep finished",
		slog.String("kind", string(kind)),
		slog.Bool("dry_run", ro.dryRun),
		slog.Int("scanned", report.Scanned),
		slog.Int("failed", report.Failed),
		logger.Duration(report.Duration),
	)
	for _, hook := range s.hooks {
		hook(report)
	}
	return report, err
}

func (r *Report) merge(o Report) {
	r.Renewed += o.Renewed
	r.Recovered += o.Recovered
	r.Pending += o.Pending
	r.Suspended += o.Suspended
	r.Expired += o.Expired
	r.InGrace += o.InGrace
	r.Skipped += o.Skipped
}
