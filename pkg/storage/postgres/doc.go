// Package postgres stores subscriptions, payment attempts, credits and the
// audit log in PostgreSQL using pgx/v5, with schema migrations embedded and
// applied by goose/v3.
//
//	pool, err := postgres.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := postgres.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	store := postgres.NewStore(pool)
//
// Store.Apply commits the subscription row and everything recorded with it
// in one transaction. Updates are conditional on the version the caller read;
// a mismatch returns subscription.ErrConcurrentUpdate and writes nothing.
// A partial unique index keeps at most one non-terminal subscription per
// tenant, surfaced as subscription.ErrDuplicateSubscription.
package postgres
