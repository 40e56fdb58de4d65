package sweep

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithConfig overrides batching.
func WithConfig(cfg Config) Option {
	return func(s *Sweeper) { s.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReportHook is called with the report of every finished run.
func WithReportHook(fn func(Report)) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

type runOptions struct {
	dryRun   bool
	tenantID uuid.UUID
}

// RunOption scopes a single run.
type RunOption func(*runOptions)

// DryRun lists due subscriptions without touching them.
func DryRun() RunOption {
	return func(o *runOptions) { o.dryRun = true }
}

// ForTenant restricts the run to one tenant.
func ForTenant(id uuid.UUID) RunOption {
	return func(o *runOptions) { o.tenantID = id }
}
