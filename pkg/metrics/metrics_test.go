package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/sweep"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("panics on nil registerer", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { metrics.NewCollector(nil) })
	})

	t.Run("panics on double registration", func(t *testing.T) {
		t.Parallel()
		reg := prometheus.NewRegistry()
		metrics.NewCollector(reg)
		assert.Panics(t, func() { metrics.NewCollector(reg) })
	})
}

func TestCollector_Observer(t *testing.T) {
	t.Parallel()
	c := metrics.NewCollector(prometheus.NewRegistry())

	c.TransitionApplied(subscription.StatusActive, subscription.StatusPending, subscription.EventChargeFailed)
	c.TransitionApplied(subscription.StatusActive, subscription.StatusPending, subscription.EventChargeFailed)
	c.TransitionApplied(subscription.StatusPending, subscription.StatusActive, subscription.EventRenew)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Transitions.WithLabelValues("active", "pending", "charge_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transitions.WithLabelValues("pending", "active", "renew")))

	c.PaymentAttempted(subscription.PaymentAttempt{
		Purpose: subscription.PurposeRenewal,
		Outcome: subscription.OutcomeSucceeded,
		Amount:  subscription.Money{Amount: 1500, Currency: "EUR"},
	})
	c.PaymentAttempted(subscription.PaymentAttempt{
		Purpose: subscription.PurposeRetry,
		Outcome: subscription.OutcomeFailed,
		Reason:  subscription.ReasonDeclined,
		Amount:  subscription.Money{Amount: 1500, Currency: "EUR"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.PaymentAttempts.WithLabelValues("renewal", "succeeded", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PaymentAttempts.WithLabelValues("retry", "failed", "declined")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.PaymentAmount.WithLabelValues("EUR")))
}

func TestCollector_Breakers(t *testing.T) {
	t.Parallel()
	c := metrics.NewCollector(prometheus.NewRegistry())

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := breaker.NewRegistry(
		breaker.WithListener(c.BreakerListener()),
		breaker.WithClock(func() time.Time { return now }),
	)
	b := reg.Register(breaker.PaymentService, breaker.Config{FailureThreshold: 1, Cooldown: time.Minute})
	c.TrackBreakers(reg)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.BreakerState.WithLabelValues(breaker.PaymentService)))

	err := b.Call(t.Context(), func(context.Context) error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, float64(breaker.Open), testutil.ToFloat64(c.BreakerState.WithLabelValues(breaker.PaymentService)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BreakerChanges.WithLabelValues(breaker.PaymentService, "closed", "open")))
}

func TestCollector_ObserveSweep(t *testing.T) {
	t.Parallel()
	c := metrics.NewCollector(prometheus.NewRegistry())
	started := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	c.ObserveSweep(sweep.Report{
		Kind:      sweep.KindExpiry,
		Scanned:   4,
		Renewed:   2,
		Expired:   1,
		InGrace:   1,
		StartedAt: started,
		Duration:  2 * time.Second,
	})
	c.ObserveSweep(sweep.Report{Kind: sweep.KindRetry, Scanned: 1, Failed: 1, StartedAt: started})
	c.ObserveSweep(sweep.Report{Kind: sweep.KindExpiry, DryRun: true, Scanned: 10})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.SweepRuns.WithLabelValues("expiry", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SweepRuns.WithLabelValues("retry", "partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.SweepItems.WithLabelValues("expiry", "renewed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SweepItems.WithLabelValues("retry", "failed")))
	assert.Equal(t, float64(started.Add(2*time.Second).Unix()),
		testutil.ToFloat64(c.SweepLastSuccess.WithLabelValues("expiry")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.SweepDuration))
}

func TestHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.TransitionApplied(subscription.StatusTrial, subscription.StatusActive, subscription.EventConvert)

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body),
		`billing_subscription_transitions_total{event="convert",from="trial",to="active"} 1`)
}
