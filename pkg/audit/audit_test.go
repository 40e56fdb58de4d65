package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

func TestRecorder_Record(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := audit.NewRecorder(audit.WithClock(func() time.Time { return fixed }))
	subID, tenantID := uuid.New(), uuid.New()

	t.Run("context values", func(t *testing.T) {
		t.Parallel()

		ctx := audit.WithActorContext(context.Background(), "user:42")
		ctx = audit.WithIPContext(ctx, "10.0.0.1")
		ctx = audit.WithRequestIDContext(ctx, "req-1")

		e := rec.Record(ctx, "subscription.created",
			audit.WithSubscription(subID, tenantID),
			audit.WithBefore(nil),
			audit.WithAfter(audit.Snapshot{"status": "active"}),
		)

		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.Equal(t, "user:42", e.Actor)
		assert.Equal(t, "10.0.0.1", e.IP)
		assert.Equal(t, "req-1", e.RequestID)
		assert.Equal(t, audit.ResultSuccess, e.Result)
		assert.Equal(t, fixed, e.CreatedAt)
		assert.Equal(t, subID, e.SubscriptionID)
		assert.Equal(t, tenantID, e.TenantID)
		assert.Equal(t, "active", e.After["status"])
		require.NoError(t, e.Validate())
	})

	t.Run("system actor by default", func(t *testing.T) {
		t.Parallel()

		e := rec.Record(context.Background(), "subscription.expired", audit.WithSubscription(subID, tenantID))
		assert.Equal(t, audit.SystemActor, e.Actor)
		assert.Empty(t, e.IP)
	})

	t.Run("explicit actor wins", func(t *testing.T) {
		t.Parallel()

		ctx := audit.WithActorContext(context.Background(), "user:1")
		e := rec.Record(ctx, "x", audit.WithActor("scheduler"))
		assert.Equal(t, "scheduler", e.Actor)
	})

	t.Run("error entry", func(t *testing.T) {
		t.Parallel()

		e := rec.RecordError(context.Background(), "payment.failed", errors.New("card declined"),
			audit.WithSubscription(subID, tenantID))
		assert.Equal(t, audit.ResultFailure, e.Result)
		assert.Equal(t, "card declined", e.Error)
	})

	t.Run("sensitive details are scrubbed", func(t *testing.T) {
		t.Parallel()

		e := rec.Record(context.Background(), "payment.failed",
			audit.WithDetail("card_number", "4242424242424242"),
			audit.WithDetail("cvc", "123"),
			audit.WithDetail("reason", "declined"),
		)
		assert.Equal(t, "************4242", e.Details["card_number"])
		assert.NotContains(t, e.Details, "cvc")
		assert.Equal(t, "declined", e.Details["reason"])
	})
}

func TestEntry_Validate(t *testing.T) {
	t.Parallel()

	e := audit.Entry{SubscriptionID: uuid.New()}
	require.ErrorIs(t, e.Validate(), audit.ErrEntryValidation)

	e = audit.Entry{Action: "x"}
	require.ErrorIs(t, e.Validate(), audit.ErrEntryValidation)
}

func TestMetadataFilter(t *testing.T) {
	t.Parallel()

	f := audit.NewMetadataFilter(
		audit.WithAllowedField("email"),
		audit.WithCustomField("Plan_Secret", audit.FilterActionRemove),
		audit.WithCustomField("coupon", audit.FilterActionHash),
	)

	out := f.Filter(map[string]any{
		"email":       "a@b.c",
		"plan_secret": "x",
		"coupon":      "SAVE10",
		"iban":        "DE12",
	})

	assert.Equal(t, "a@b.c", out["email"])
	assert.NotContains(t, out, "plan_secret")
	assert.Len(t, out["coupon"], 64)
	assert.Equal(t, "****", out["iban"])
	assert.Nil(t, f.Filter(nil))
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := audit.NewMemoryStorage()
	subA, subB, tenant := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx,
		audit.Entry{ID: uuid.New(), SubscriptionID: subA, TenantID: tenant, Action: "subscription.created", CreatedAt: base},
		audit.Entry{ID: uuid.New(), SubscriptionID: subA, TenantID: tenant, Action: "subscription.renewed", CreatedAt: base.Add(time.Hour)},
		audit.Entry{ID: uuid.New(), SubscriptionID: subB, TenantID: tenant, Action: "subscription.created", CreatedAt: base.Add(2 * time.Hour)},
	))

	all, err := s.Query(ctx, audit.Criteria{TenantID: tenant})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySub, err := s.Query(ctx, audit.Criteria{SubscriptionID: subA})
	require.NoError(t, err)
	require.Len(t, bySub, 2)
	assert.Equal(t, "subscription.created", bySub[0].Action)

	byAction, err := s.Query(ctx, audit.Criteria{Actions: []string{"subscription.created"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, subA, byAction[0].SubscriptionID)

	window, err := s.Query(ctx, audit.Criteria{Since: base.Add(time.Hour), Until: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "subscription.renewed", window[0].Action)

	err = s.Append(ctx, audit.Entry{SubscriptionID: subA})
	require.ErrorIs(t, err, audit.ErrEntryValidation)
}
