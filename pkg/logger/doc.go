// Package logger builds log/slog loggers and provides attribute helpers for
// the billing domain (subscription, tenant, plan, dependency).
//
//	log := logger.New(logger.Config{Environment: "production", Service: "billingd"}.Options()...)
//	log.InfoContext(ctx, "subscription renewed",
//	    logger.SubscriptionID(sub.ID),
//	    logger.TenantID(sub.TenantID),
//	    logger.Transition(from, to),
//	)
//
// Context extractors copy request-scoped values (request ID, actor) into every
// record logged with that context. Helpers return an empty attribute for nil
// inputs, which slog drops.
package logger
