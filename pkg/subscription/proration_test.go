package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

func TestProrate(t *testing.T) {
	t.Parallel()

	usd := func(a int64) subscription.Money { return subscription.Money{Amount: a, Currency: "USD"} }
	periodStart := start
	periodEnd := start.AddDate(0, 0, 31)

	tests := []struct {
		name string
		old  int64
		new  int64
		now  time.Time
		want int64
	}{
		{name: "upgrade after ten days", old: 1000, new: 3000, now: start.AddDate(0, 0, 10), want: 1354},
		{name: "downgrade on the last day", old: 3000, new: 1000, now: start.AddDate(0, 0, 30), want: -64},
		{name: "at period start", old: 1000, new: 3000, now: periodStart, want: 2000},
		{name: "after period end", old: 1000, new: 3000, now: periodEnd.Add(time.Hour), want: 0},
		{name: "same price", old: 1000, new: 1000, now: start.AddDate(0, 0, 3), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := subscription.Prorate(usd(tt.old), usd(tt.new), periodStart, periodEnd, tt.now)
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestChangePlan_ImmediateUpgrade(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.clock.Set(start.AddDate(0, 0, 10))

	changed, err := f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeImmediate)
	require.NoError(t, err)
	assert.Equal(t, "pro", changed.PlanID)
	assert.Equal(t, sub.CurrentPeriodEnd, changed.CurrentPeriodEnd)

	require.Len(t, f.gateway.calls(), 1)
	assert.EqualValues(t, 1354, f.gateway.calls()[0].Amount.Amount)
	assert.Equal(t, subscription.PurposePlanChange, f.gateway.calls()[0].Purpose)
	assert.Equal(t, []string{"active-change_plan->active"}, f.observer.transitions)
}

func TestChangePlan_DowngradeIssuesCreditForNextRenewal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "pro", subscription.CreateOptions{})
	f.clock.Set(start.AddDate(0, 0, 30))

	changed, err := f.svc.ChangePlan(ctx, sub.ID, "basic", subscription.ChangeImmediate)
	require.NoError(t, err)
	assert.Equal(t, "basic", changed.PlanID)
	assert.Empty(t, f.gateway.calls())

	credits, err := f.store.Credits(ctx, sub.ID, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.EqualValues(t, 64, credits[0].Amount.Amount)
	assert.Equal(t, subscription.CreditReasonProration, credits[0].Reason)
	assert.Equal(t, f.clock.Now().Add(365*24*time.Hour), credits[0].ExpiresAt)

	f.clock.Set(changed.CurrentPeriodEnd)
	_, err = f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, f.gateway.calls(), 1)
	assert.EqualValues(t, 936, f.gateway.calls()[0].Amount.Amount)

	credits, err = f.store.Credits(ctx, sub.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, credits, "credit is consumed by the renewal")

	assert.Equal(t, []string{
		subscription.ActionCreated,
		subscription.ActionCreditIssued,
		subscription.ActionPlanChanged,
		subscription.ActionRenewed,
	}, f.actions(t, sub.ID))
}

func TestChangePlan_FailedChargeKeepsPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	f.clock.Set(start.AddDate(0, 0, 10))
	f.gateway.set(func(context.Context, subscription.ChargeRequest) (subscription.ChargeResult, error) {
		return subscription.ChargeResult{}, errors.New("gateway unavailable")
	})

	_, err := f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeImmediate)
	require.ErrorIs(t, err, subscription.ErrPlanChangeFailed)
	require.ErrorIs(t, err, subscription.ErrPaymentGateway)

	current, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "basic", current.PlanID)
	assert.Equal(t, subscription.StatusActive, current.Status)

	attempts, err := f.svc.ListAttempts(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, subscription.ReasonGatewayError, attempts[0].Reason)
	assert.Equal(t, []string{subscription.ActionCreated, subscription.ActionPlanChangeFailed}, f.actions(t, sub.ID))
}

func TestChangePlan_UsageExceedsNewPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "pro", subscription.CreateOptions{})
	f.meter.exceeded["basic"] = []subscription.Metric{subscription.MetricUsers}

	for _, mode := range []subscription.ChangeMode{subscription.ChangeImmediate, subscription.ChangeEndOfCycle} {
		_, err := f.svc.ChangePlan(ctx, sub.ID, "basic", mode)
		require.ErrorIs(t, err, subscription.ErrUsageExceedsNewPlan)
	}

	current, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub, current, "rejected plan change leaves the subscription untouched")
	assert.Empty(t, f.gateway.calls())
	assert.Equal(t, []string{subscription.ActionCreated}, f.actions(t, sub.ID))
}

func TestChangePlan_EndOfCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})

	scheduled, err := f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeEndOfCycle)
	require.NoError(t, err)
	assert.Equal(t, "basic", scheduled.PlanID)
	assert.Equal(t, "pro", scheduled.ScheduledPlanID)
	assert.Empty(t, f.gateway.calls())

	f.clock.Set(sub.CurrentPeriodEnd)
	renewed, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", renewed.PlanID)
	assert.Empty(t, renewed.ScheduledPlanID)
	require.Len(t, f.gateway.calls(), 1)
	assert.EqualValues(t, 3000, f.gateway.calls()[0].Amount.Amount)
}

func TestChangePlan_ScheduledPlanDiscontinuedBeforeRenewal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})
	_, err := f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeEndOfCycle)
	require.NoError(t, err)

	pro := f.catalog["pro"]
	pro.Discontinued = true
	f.catalog["pro"] = pro

	f.clock.Set(sub.CurrentPeriodEnd)
	renewed, err := f.svc.RenewSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "basic", renewed.PlanID)
	assert.Empty(t, renewed.ScheduledPlanID)
	assert.EqualValues(t, 1000, f.gateway.calls()[0].Amount.Amount)
	assert.Contains(t, f.actions(t, sub.ID), subscription.ActionPlanChangeFailed)
}

func TestChangePlan_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sub := f.create(t, "basic", subscription.CreateOptions{})

	_, err := f.svc.ChangePlan(ctx, sub.ID, "basic", subscription.ChangeImmediate)
	require.ErrorIs(t, err, subscription.ErrInvalidState)

	_, err = f.svc.ChangePlan(ctx, sub.ID, "legacy", subscription.ChangeImmediate)
	require.ErrorIs(t, err, subscription.ErrPlanUnavailable)

	_, err = f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeMode("tomorrow"))
	require.ErrorIs(t, err, subscription.ErrInvalidChangeMode)

	_, err = f.svc.SuspendSubscription(ctx, sub.ID, "review")
	require.NoError(t, err)
	_, err = f.svc.ChangePlan(ctx, sub.ID, "pro", subscription.ChangeImmediate)
	require.ErrorIs(t, err, subscription.ErrInvalidState)
}

func TestChangePlan_TrialSwitchesWithoutCharge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sub := f.create(t, "basic", subscription.CreateOptions{Trial: true})
	changed, err := f.svc.ChangePlan(context.Background(), sub.ID, "pro", subscription.ChangeImmediate)
	require.NoError(t, err)

	assert.Equal(t, "pro", changed.PlanID)
	assert.Equal(t, subscription.StatusTrial, changed.Status)
	assert.Equal(t, sub.CurrentPeriodEnd, changed.CurrentPeriodEnd)
	assert.Empty(t, f.gateway.calls())
}
