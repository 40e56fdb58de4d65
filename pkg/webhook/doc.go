// Package webhook delivers signed JSON events to tenant endpoints.
//
// A Sender retries temporary failures (network errors, 5xx, 408, 425 and 429)
// with a backoff.Strategy and stops at the first permanent 4xx. When built
// with WithBreaker every attempt goes through a breaker.Breaker, so a dead
// endpoint is skipped quickly instead of holding up the caller.
//
//	b := breakers.Register("tenant_webhooks", cfg, breaker.WithFailureFilter(webhook.IsRetryable))
//	sender := webhook.NewSender(webhook.WithBreaker(b), webhook.WithSecret(secret))
//	err := sender.Send(ctx, "https://tenant.example.com/hooks/billing", event)
//
// Receivers check authenticity with Verify:
//
//	err := webhook.Verify(secret, body, r.Header, 5*time.Minute, time.Now())
package webhook
