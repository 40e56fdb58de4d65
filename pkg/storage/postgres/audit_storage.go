package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// AuditStorage implements audit.Storage on the audit_log table.
// Store writes subscription audit entries inside its own transaction; this
// type serves reads and standalone appends.
type AuditStorage struct {
	pool *pgxpool.Pool
}

// NewAuditStorage creates an audit storage on an open pool.
func NewAuditStorage(pool *pgxpool.Pool) *AuditStorage {
	if pool == nil {
		panic("postgres: pool cannot be nil")
	}
	return &AuditStorage{pool: pool}
}

func (s *AuditStorage) Append(ctx context.Context, entries ...audit.Entry) error {
	batch := &pgx.Batch{}
	for i := range entries {
		e := entries[i]
		if err := e.Validate(); err != nil {
			return err
		}
		batch.Queue(`INSERT INTO audit_log
			(id, subscription_id, tenant_id, actor, action, before, after, details, result, error, ip, request_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.SubscriptionID, e.TenantID, e.Actor, e.Action, jsonOrNil(e.Before), jsonOrNil(e.After),
			jsonOrNil(e.Details), e.Result, e.Error, e.IP, e.RequestID, e.CreatedAt)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append audit entries: %w", err)
	}
	return nil
}

func (s *AuditStorage) Query(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.SubscriptionID != uuid.Nil {
		where = append(where, "subscription_id = "+arg(criteria.SubscriptionID))
	}
	if criteria.TenantID != uuid.Nil {
		where = append(where, "tenant_id = "+arg(criteria.TenantID))
	}
	if len(criteria.Actions) > 0 {
		where = append(where, "action = ANY("+arg(criteria.Actions)+")")
	}
	if !criteria.Since.IsZero() {
		where = append(where, "created_at >= "+arg(criteria.Since))
	}
	if !criteria.Until.IsZero() {
		where = append(where, "created_at < "+arg(criteria.Until))
	}

	query := `SELECT id, subscription_id, tenant_id, actor, action, before, after, details,
		result, error, ip, request_id, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if criteria.Limit > 0 {
		query += " LIMIT " + arg(criteria.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.TenantID, &e.Actor, &e.Action, &e.Before, &e.After,
			&e.Details, &e.Result, &e.Error, &e.IP, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ audit.Storage = (*AuditStorage)(nil)
