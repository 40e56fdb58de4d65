package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

func TestDunning_BackoffScheduleThenSuspension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.gateway.decline()
	f.clock.Set(sub.CurrentPeriodEnd)

	pending, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err, "a declined renewal is absorbed by dunning")
	assert.Equal(t, subscription.StatusPending, pending.Status)
	assert.Equal(t, 1, pending.PaymentRetryCount)
	require.NotNil(t, pending.NextPaymentDate)
	assert.Equal(t, f.clock.Now().Add(time.Hour), *pending.NextPaymentDate)

	for i, wait := range []time.Duration{2 * time.Hour, 4 * time.Hour} {
		f.clock.Set(*pending.NextPaymentDate)
		pending, err = f.svc.Dunning().AttemptCharge(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPending, pending.Status)
		assert.Equal(t, i+2, pending.PaymentRetryCount)
		assert.Equal(t, f.clock.Now().Add(wait), *pending.NextPaymentDate)
	}

	f.clock.Set(*pending.NextPaymentDate)
	suspended, err := f.svc.Dunning().AttemptCharge(ctx, sub.ID)
	require.ErrorIs(t, err, subscription.ErrRetriesExhausted)
	assert.Equal(t, subscription.StatusSuspended, suspended.Status)
	assert.Equal(t, subscription.SuspendReasonRetriesExhausted, suspended.SuspendReason)
	assert.Equal(t, 3, suspended.PaymentRetryCount)
	assert.Nil(t, suspended.NextPaymentDate)

	attempts, err := f.svc.ListAttempts(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 4)
	for i, a := range attempts {
		assert.Equal(t, subscription.OutcomeFailed, a.Outcome)
		assert.Equal(t, subscription.ReasonDeclined, a.Reason)
		assert.Equal(t, i, a.AttemptNumber)
	}

	assert.Equal(t, []subscription.NoticeKind{
		subscription.NoticePaymentFailed,
		subscription.NoticePaymentFailed,
		subscription.NoticePaymentFailed,
		subscription.NoticeRetriesExhausted,
	}, f.notifier.kinds())

	assert.Equal(t, []string{
		subscription.ActionCreated,
		subscription.ActionPaymentFailed,
		subscription.ActionPaymentFailed,
		subscription.ActionPaymentFailed,
		subscription.ActionPaymentFailed,
		subscription.ActionRetriesExhausted,
	}, f.actions(t, sub.ID))

	keys := map[string]bool{}
	for _, req := range f.gateway.calls() {
		assert.False(t, keys[req.IdempotencyKey], "idempotency keys must differ per attempt")
		keys[req.IdempotencyKey] = true
	}
}

func TestDunning_RetryRecovers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.gateway.decline()
	f.clock.Set(sub.CurrentPeriodEnd)

	pending, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)

	f.gateway.approve()
	f.clock.Set(*pending.NextPaymentDate)
	active, err := f.svc.Dunning().AttemptCharge(ctx, sub.ID)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusActive, active.Status)
	assert.Zero(t, active.PaymentRetryCount)
	assert.Nil(t, active.NextPaymentDate)
	assert.Equal(t, f.clock.Now(), active.CurrentPeriodStart)
	assert.Equal(t, subscription.PurposeRetry, f.gateway.calls()[1].Purpose)

	_, err = f.svc.Dunning().AttemptCharge(ctx, sub.ID)
	require.ErrorIs(t, err, subscription.ErrInvalidState)
}

func TestDunning_RetryCountNeverExceedsMax(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{MaxPaymentRetries: 5})

	for range 10 {
		current, err := f.svc.Dunning().HandleFailedPayment(ctx, sub.ID, subscription.ReasonDeclined)
		if err != nil && !errors.Is(err, subscription.ErrRetriesExhausted) {
			require.ErrorIs(t, err, subscription.ErrInvalidState)
			current, err = f.svc.Get(ctx, sub.ID)
			require.NoError(t, err)
		}
		assert.LessOrEqual(t, current.PaymentRetryCount, current.MaxPaymentRetries)
		if current.Status == subscription.StatusSuspended {
			assert.False(t, f.svc.Dunning().ShouldRetryPayment(current))
		}
	}

	final, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuspended, final.Status)
	assert.Equal(t, 5, final.PaymentRetryCount)
}

func TestDunning_FailedTrialConversion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sub := f.create(t, "basic", subscription.CreateOptions{Trial: true, MaxPaymentRetries: 1})
	f.gateway.decline()
	f.clock.Set(sub.CurrentPeriodEnd.Add(time.Second))

	outcome, err := f.svc.ProcessExpired(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.OutcomePending, outcome)

	require.Len(t, f.gateway.calls(), 1)
	assert.Equal(t, subscription.PurposeTrialConversion, f.gateway.calls()[0].Purpose)

	f.clock.Advance(2 * time.Hour)
	suspended, err := f.svc.Dunning().AttemptCharge(context.Background(), sub.ID)
	require.ErrorIs(t, err, subscription.ErrRetriesExhausted)
	assert.Equal(t, subscription.StatusSuspended, suspended.Status)
}

func TestDunning_OpenCircuitCountsAsFailure(t *testing.T) {
	t.Parallel()
	f := newFixtureWithBreaker(t, breaker.Config{FailureThreshold: 1, Cooldown: 24 * time.Hour, CallTimeout: time.Second})
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.gateway.set(func(context.Context, subscription.ChargeRequest) (subscription.ChargeResult, error) {
		return subscription.ChargeResult{}, errors.New("connection reset by peer")
	})
	f.clock.Set(sub.CurrentPeriodEnd)

	pending, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, breaker.Open, f.breakers.MustGet(breaker.PaymentService).State())

	f.clock.Set(*pending.NextPaymentDate)
	pending, err = f.svc.Dunning().AttemptCharge(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pending.PaymentRetryCount)
	assert.Len(t, f.gateway.calls(), 1, "an open circuit does not reach the gateway")

	attempts, err := f.svc.ListAttempts(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, subscription.ReasonGatewayError, attempts[0].Reason)
	assert.Equal(t, subscription.ReasonCircuitOpen, attempts[1].Reason)
	assert.Equal(t, []subscription.PaymentAttempt{attempts[0], attempts[1]}, f.observer.attempts)
}

func TestDunning_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()
	f := newFixtureWithBreaker(t, breaker.Config{FailureThreshold: 5, Cooldown: time.Minute, CallTimeout: 20 * time.Millisecond})

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.gateway.set(func(ctx context.Context, _ subscription.ChargeRequest) (subscription.ChargeResult, error) {
		<-ctx.Done()
		return subscription.ChargeResult{}, ctx.Err()
	})
	f.clock.Set(sub.CurrentPeriodEnd)

	pending, err := f.svc.RenewSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, pending.Status)

	attempts, err := f.svc.ListAttempts(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, subscription.ReasonTimeout, attempts[0].Reason)
}

func TestDunning_CallerDeadlineRecordsTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.gateway.set(func(ctx context.Context, _ subscription.ChargeRequest) (subscription.ChargeResult, error) {
		<-ctx.Done()
		return subscription.ChargeResult{}, ctx.Err()
	})
	f.clock.Set(sub.CurrentPeriodEnd)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	pending, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, pending.Status)
	assert.Equal(t, 1, pending.PaymentRetryCount)

	stored, err := f.svc.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, stored.Status)

	attempts, err := f.svc.ListAttempts(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, subscription.ReasonTimeout, attempts[0].Reason)
	assert.Equal(t, subscription.OutcomeFailed, attempts[0].Outcome)
}

func TestDunning_CallerCancellationLeavesNoAttempt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sub := f.create(t, "basic", subscription.CreateOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.set(func(ctx context.Context, _ subscription.ChargeRequest) (subscription.ChargeResult, error) {
		cancel()
		<-ctx.Done()
		return subscription.ChargeResult{}, ctx.Err()
	})
	f.clock.Set(sub.CurrentPeriodEnd)

	_, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.ErrorIs(t, err, context.Canceled)

	attempts, err := f.svc.ListAttempts(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	stored, err := f.svc.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, stored.Status)
}

func TestDunning_ProcessDueRetries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.decline()
	var ids []subscription.Subscription
	for range 3 {
		sub := f.create(t, "basic", subscription.CreateOptions{})
		ids = append(ids, sub)
	}
	f.clock.Set(ids[0].CurrentPeriodEnd)
	for _, sub := range ids {
		_, err := f.svc.RenewSubscription(ctx, sub.ID)
		require.NoError(t, err)
	}

	report, err := f.svc.Dunning().ProcessDueRetries(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, report.Attempted, "nothing is due before the first retry interval")

	f.gateway.approve()
	f.clock.Advance(time.Hour)
	report, err = f.svc.Dunning().ProcessDueRetries(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Recovered)
	assert.Empty(t, report.Errors)
}

func TestDunning_NextRetryAt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	engine := f.svc.Dunning()

	assert.Equal(t, start.Add(time.Hour), engine.NextRetryAt(1, start))
	assert.Equal(t, start.Add(2*time.Hour), engine.NextRetryAt(2, start))
	assert.Equal(t, start.Add(4*time.Hour), engine.NextRetryAt(3, start))
	assert.Equal(t, start.Add(72*time.Hour), engine.NextRetryAt(20, start))
}
