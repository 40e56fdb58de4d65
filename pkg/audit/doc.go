// Package audit records who changed a subscription, what changed and why.
//
// Entries are append-only. A Recorder builds entries from request context
// (actor, client IP, request ID) and scrubs sensitive payment details with a
// MetadataFilter; it does not write anything itself. The component that commits
// the audited change persists the entries in the same transaction, so an entry
// exists if and only if the change it describes was committed.
//
//	rec := audit.NewRecorder()
//	ctx = audit.WithActorContext(ctx, "user:42")
//	entry := rec.Record(ctx, "subscription.canceled",
//	    audit.WithSubscription(sub.ID, sub.TenantID),
//	    audit.WithDetail("reason", "customer request"),
//	)
//
// Entries without an actor in context are attributed to SystemActor.
// MemoryStorage serves tests and single-process deployments; the Postgres
// store in pkg/storage/postgres writes the audit_log table.
package audit
