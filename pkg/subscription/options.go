package subscription

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// ServiceOption configures optional dependencies of the service.
type ServiceOption func(*service)

// WithConfig replaces the lifecycle and dunning settings.
// Zero durations and batch size fall back to DefaultConfig; zero MaxPaymentRetries disables retries.
func WithConfig(cfg Config) ServiceOption {
	return func(s *service) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker sets the per-subscription lock. Use a distributed lock when
// more than one process mutates subscriptions.
func WithLocker(l Locker) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithUsageMeter enables overage charges and usage checks on plan changes.
func WithUsageMeter(m UsageMeter) ServiceOption {
	return func(s *service) {
		if m != nil {
			s.meter = m
		}
	}
}

// WithTenantResolver enables region and compliance checks. Without it, plans
// restricted by region or compliance are unavailable.
func WithTenantResolver(r TenantResolver) ServiceOption {
	return func(s *service) {
		if r != nil {
			s.tenants = r
		}
	}
}

// WithNotifier sets the dunning notifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithObserver registers a commit observer.
func WithObserver(o Observer) ServiceOption {
	return func(s *service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithRecorder sets the audit entry builder.
func WithRecorder(r *audit.Recorder) ServiceOption {
	return func(s *service) {
		if r != nil {
			s.recorder = r
		}
	}
}
