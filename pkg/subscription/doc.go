// Package subscription implements the lifecycle of paid subscriptions:
// creation, renewal, cancellation, suspension, reactivation, plan changes and
// expiry, together with the payment retry engine that drives dunning.
//
// Status changes follow a closed transition table:
//
//	trial     -> active (convert), pending (charge_failed), canceled, expired
//	active    -> active (renew, change_plan), pending, suspended, canceled, expired
//	pending   -> active (renew), pending (charge_failed), suspended, canceled
//	suspended -> active (reactivate), canceled
//
// Canceled and expired are terminal; resubscribing creates a new subscription.
//
// Every mutation runs under a per-subscription lock and is committed through
// Store.Apply together with its audit entries, payment attempts and credits,
// guarded by an optimistic version check. Notifications and observers run
// after the commit and never fail the operation.
//
// # Usage
//
//	svc := subscription.NewService(store, catalog, gateway, breakers,
//		subscription.WithUsageMeter(monitor),
//		subscription.WithTenantResolver(resolver),
//		subscription.WithLogger(log),
//	)
//
//	sub, err := svc.CreateSubscription(ctx, tenantID, "pro_monthly", subscription.CreateOptions{Trial: true})
//	if errors.Is(err, subscription.ErrPlanUnavailable) {
//		// plan discontinued, not offered in the tenant's region, or identity service down
//	}
//
// Payment failures during renewal do not fail the call. The subscription moves
// to pending and retries are scheduled after 1h, 2h, 4h... capped at
// RetryConfig.MaxInterval. When retries run out the subscription is suspended
// and ErrRetriesExhausted is returned.
//
// A subscription whose period has ended stays active during the plan's grace
// period; use IsInGracePeriod to tell it apart.
package subscription
