package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

const subscriptionColumns = `id, tenant_id, plan_id, scheduled_plan_id, status,
	current_period_start, current_period_end, last_payment_date, next_payment_date,
	payment_retry_count, max_payment_retries, auto_renew, trial_ends_at, payment_method,
	cancel_reason, suspend_reason, canceled_at, suspended_at, created_at, updated_at, version`

// Store implements subscription.Store on PostgreSQL. Apply runs in a single
// transaction guarded by the subscription's version column.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on an open pool. Run Migrate first.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("postgres: pool cannot be nil")
	}
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (subscription.Subscription, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if isNotFound(err) {
		return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *Store) GetByTenant(ctx context.Context, tenantID uuid.UUID) (subscription.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE tenant_id = $1 AND status NOT IN ('canceled', 'expired')`, tenantID)
	sub, err := scanSubscription(row)
	if isNotFound(err) {
		return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *Store) Apply(ctx context.Context, change subscription.Change) error {
	for i := range change.Audit {
		if err := change.Audit[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sub := change.Subscription
	if change.Create {
		if err := insertSubscription(ctx, tx, sub); err != nil {
			if isUniqueViolation(err, "") {
				return subscription.ErrDuplicateSubscription
			}
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
	} else if err := updateSubscription(ctx, tx, sub, change.ExpectedVersion); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, a := range change.Attempts {
		batch.Queue(`INSERT INTO payment_attempts
			(id, subscription_id, attempt_number, amount, currency, purpose, outcome, reason, error, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.ID, a.SubscriptionID, a.AttemptNumber, a.Amount.Amount, a.Amount.Currency,
			a.Purpose, a.Outcome, a.Reason, a.Error, a.TransactionID, a.CreatedAt)
	}
	for _, c := range change.NewCredits {
		batch.Queue(`INSERT INTO credits
			(id, subscription_id, amount, currency, reason, expires_at, used_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.SubscriptionID, c.Amount.Amount, c.Amount.Currency, c.Reason, c.ExpiresAt, c.UsedAt, c.CreatedAt)
	}
	if len(change.ConsumedCredits) > 0 {
		batch.Queue(`UPDATE credits SET used_at = $1
			WHERE subscription_id = $2 AND id = ANY($3) AND used_at IS NULL`,
			sub.UpdatedAt, sub.ID, change.ConsumedCredits)
	}
	for _, e := range change.Audit {
		batch.Queue(`INSERT INTO audit_log
			(id, subscription_id, tenant_id, actor, action, before, after, details, result, error, ip, request_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.SubscriptionID, e.TenantID, e.Actor, e.Action, jsonOrNil(e.Before), jsonOrNil(e.After),
			jsonOrNil(e.Details), e.Result, e.Error, e.IP, e.RequestID, e.CreatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write subscription records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit subscription change: %w", err)
	}
	return nil
}

func insertSubscription(ctx context.Context, tx pgx.Tx, sub subscription.Subscription) error {
	_, err := tx.Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		sub.ID, sub.TenantID, sub.PlanID, sub.ScheduledPlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.LastPaymentDate, sub.NextPaymentDate,
		sub.PaymentRetryCount, sub.MaxPaymentRetries, sub.AutoRenew, sub.TrialEndsAt, sub.PaymentMethod,
		sub.CancelReason, sub.SuspendReason, sub.CanceledAt, sub.SuspendedAt, sub.CreatedAt, sub.UpdatedAt, sub.Version)
	return err
}

func updateSubscription(ctx context.Context, tx pgx.Tx, sub subscription.Subscription, expected int64) error {
	tag, err := tx.Exec(ctx, `UPDATE subscriptions SET
			plan_id = $3, scheduled_plan_id = $4, status = $5,
			current_period_start = $6, current_period_end = $7, last_payment_date = $8, next_payment_date = $9,
			payment_retry_count = $10, max_payment_retries = $11, auto_renew = $12, trial_ends_at = $13,
			payment_method = $14, cancel_reason = $15, suspend_reason = $16, canceled_at = $17,
			suspended_at = $18, updated_at = $19, version = $20
		WHERE id = $1 AND version = $2`,
		sub.ID, expected, sub.PlanID, sub.ScheduledPlanID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.LastPaymentDate, sub.NextPaymentDate,
		sub.PaymentRetryCount, sub.MaxPaymentRetries, sub.AutoRenew, sub.TrialEndsAt,
		sub.PaymentMethod, sub.CancelReason, sub.SuspendReason, sub.CanceledAt,
		sub.SuspendedAt, sub.UpdatedAt, sub.Version)
	if err != nil {
		if isUniqueViolation(err, liveTenantConstraint) {
			return subscription.ErrDuplicateSubscription
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, sub.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if !exists {
		return subscription.ErrSubscriptionNotFound
	}
	return subscription.ErrConcurrentUpdate
}

func (s *Store) ListDue(ctx context.Context, filter subscription.DueFilter) ([]subscription.Subscription, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Kind {
	case subscription.DueForExpiry:
		where = append(where, "status IN ('active', 'trial')", "current_period_end < "+arg(filter.Before))
	case subscription.DueForRetry:
		where = append(where, "status = 'pending'", "next_payment_date <= "+arg(filter.Before))
	default:
		return nil, nil
	}
	if filter.TenantID != uuid.Nil {
		where = append(where, "tenant_id = "+arg(filter.TenantID))
	}
	if filter.After != uuid.Nil {
		where = append(where, "id > "+arg(filter.After))
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY id`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) Attempts(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.PaymentAttempt, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, subscription_id, attempt_number, amount, currency,
			purpose, outcome, reason, error, transaction_id, created_at
		FROM payment_attempts WHERE subscription_id = $1 ORDER BY created_at, attempt_number`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment attempts: %w", err)
	}
	defer rows.Close()

	var out []subscription.PaymentAttempt
	for rows.Next() {
		var a subscription.PaymentAttempt
		if err := rows.Scan(&a.ID, &a.SubscriptionID, &a.AttemptNumber, &a.Amount.Amount, &a.Amount.Currency,
			&a.Purpose, &a.Outcome, &a.Reason, &a.Error, &a.TransactionID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Credits(ctx context.Context, subscriptionID uuid.UUID, now time.Time) ([]subscription.Credit, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, subscription_id, amount, currency, reason, expires_at, used_at, created_at
		FROM credits WHERE subscription_id = $1 AND used_at IS NULL AND expires_at > $2
		ORDER BY created_at, id`, subscriptionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var out []subscription.Credit
	for rows.Next() {
		var c subscription.Credit
		if err := rows.Scan(&c.ID, &c.SubscriptionID, &c.Amount.Amount, &c.Amount.Currency,
			&c.Reason, &c.ExpiresAt, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AuditTrail(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error) {
	return NewAuditStorage(s.pool).Query(ctx, criteria)
}

func scanSubscription(row pgx.Row) (subscription.Subscription, error) {
	var sub subscription.Subscription
	err := row.Scan(&sub.ID, &sub.TenantID, &sub.PlanID, &sub.ScheduledPlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.LastPaymentDate, &sub.NextPaymentDate,
		&sub.PaymentRetryCount, &sub.MaxPaymentRetries, &sub.AutoRenew, &sub.TrialEndsAt, &sub.PaymentMethod,
		&sub.CancelReason, &sub.SuspendReason, &sub.CanceledAt, &sub.SuspendedAt,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.Version)
	if err != nil {
		if isNotFound(err) {
			return sub, err
		}
		return sub, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return sub, nil
}

// jsonOrNil stores empty maps as SQL NULL.
func jsonOrNil[M ~map[string]any](m M) any {
	if len(m) == 0 {
		return nil
	}
	return map[string]any(m)
}

var _ subscription.Store = (*Store)(nil)
