package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/sweep"
)

const namespace = "billing"

// Collector holds the billing metrics.
type Collector struct {
	Transitions      *prometheus.CounterVec
	PaymentAttempts  *prometheus.CounterVec
	PaymentAmount    *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	BreakerChanges   *prometheus.CounterVec
	SweepRuns        *prometheus.CounterVec
	SweepItems       *prometheus.CounterVec
	SweepDuration    *prometheus.HistogramVec
	SweepLastSuccess *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them with reg.
// Registration panics on duplicate names, like prometheus.MustRegister.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		panic("metrics: registerer cannot be nil")
	}

	c := &Collector{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_transitions_total",
				Help:      "Committed subscription state transitions",
			},
			[]string{"from", "to", "event"},
		),
		PaymentAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_attempts_total",
				Help:      "Recorded payment attempts",
			},
			[]string{"purpose", "outcome", "reason"},
		),
		PaymentAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_amount_minor_units_total",
				Help:      "Amount charged successfully, in minor currency units",
			},
			[]string{"currency"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
			},
			[]string{"dependency"},
		),
		BreakerChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state changes",
			},
			[]string{"dependency", "from", "to"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Finished sweep runs",
			},
			[]string{"kind", "status"},
		),
		SweepItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_items_total",
				Help:      "Subscriptions processed by sweeps, by result",
			},
			[]string{"kind", "result"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Sweep run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"kind"},
		),
		SweepLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_last_success_timestamp_seconds",
				Help:      "Unix time of the last sweep run without failures",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		c.Transitions,
		c.PaymentAttempts,
		c.PaymentAmount,
		c.BreakerState,
		c.BreakerChanges,
		c.SweepRuns,
		c.SweepItems,
		c.SweepDuration,
		c.SweepLastSuccess,
	)
	return c
}

// TransitionApplied implements subscription.Observer.
func (c *Collector) TransitionApplied(from, to subscription.Status, event subscription.Event) {
	c.Transitions.WithLabelValues(string(from), string(to), string(event)).Inc()
}

// PaymentAttempted implements subscription.Observer.
func (c *Collector) PaymentAttempted(a subscription.PaymentAttempt) {
	c.PaymentAttempts.WithLabelValues(string(a.Purpose), string(a.Outcome), string(a.Reason)).Inc()
	if a.Succeeded() && a.Amount.Amount > 0 {
		c.PaymentAmount.WithLabelValues(a.Amount.Currency).Add(float64(a.Amount.Amount))
	}
}

// BreakerListener returns a breaker.Listener that tracks state changes.
func (c *Collector) BreakerListener() breaker.Listener {
	return func(name string, from, to breaker.State) {
		c.BreakerState.WithLabelValues(name).Set(float64(to))
		c.BreakerChanges.WithLabelValues(name, from.String(), to.String()).Inc()
	}
}

// TrackBreakers initializes the state gauge of every breaker in r, so that
// closed breakers are exported before their first state change.
func (c *Collector) TrackBreakers(r *breaker.Registry) {
	for name, stats := range r.States() {
		c.BreakerState.WithLabelValues(name).Set(float64(stateValue(stats.State)))
	}
}

// ObserveSweep records a finished sweep. Dry runs are ignored.
func (c *Collector) ObserveSweep(r sweep.Report) {
	if r.DryRun {
		return
	}
	kind := string(r.Kind)

	status := "ok"
	if r.Failed > 0 {
		status = "partial"
	}
	c.SweepRuns.WithLabelValues(kind, status).Inc()
	c.SweepDuration.WithLabelValues(kind).Observe(r.Duration.Seconds())
	if r.Failed == 0 {
		c.SweepLastSuccess.WithLabelValues(kind).Set(float64(r.StartedAt.Add(r.Duration).Unix()))
	}

	for result, n := range map[string]int{
		"renewed":   r.Renewed,
		"recovered": r.Recovered,
		"pending":   r.Pending,
		"suspended": r.Suspended,
		"expired":   r.Expired,
		"in_grace":  r.InGrace,
		"skipped":   r.Skipped,
		"failed":    r.Failed,
	} {
		if n > 0 {
			c.SweepItems.WithLabelValues(kind, result).Add(float64(n))
		}
	}
}

func stateValue(s string) breaker.State {
	switch s {
	case breaker.Open.String():
		return breaker.Open
	case breaker.HalfOpen.String():
		return breaker.HalfOpen
	default:
		return breaker.Closed
	}
}

var _ subscription.Observer = (*Collector)(nil)
