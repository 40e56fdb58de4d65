// Package usage meters tenant resources against plan limits.
//
// A check is a pure decision: Allowed below the soft limit, AllowedWithWarning
// above it, Denied above the hard limit. Recording is a separate step that
// runs only after the guarded action succeeded:
//
//	res, err := monitor.Enforce(ctx, sub, plan, subscription.MetricAPICalls, 1)
//	if err != nil {
//		return err // usage.ErrUsageLimitExceeded when denied
//	}
//	// ... perform the call ...
//	_, _ = monitor.RecordUsage(ctx, sub.TenantID, subscription.MetricAPICalls, 1)
//
// Counters live in a Store (MemoryStore, or RedisStore for multi-process
// setups) and are reset when a subscription period starts. Metrics counted at
// their source, such as users, can be registered as gauges.
//
// The Monitor implements subscription.UsageMeter, providing overage charges
// for renewals and hard-limit checks for plan changes.
package usage
