// Package notify delivers dunning notices (failed payment, suspension after
// the last retry, expiry) to tenants.
//
// Email renders the notice as HTML and sends it through Postmark, or writes
// it to disk with DevMailer when no Postmark tokens are configured. Amounts
// are formatted for the configured locale with golang.org/x/text. Webhook
// posts a signed JSON Event through a webhook.Sender. Multi combines both.
//
//	mailer, err := notify.NewMailer(cfg.Email)
//	notifier := notify.Multi{
//		notify.NewEmail(mailer, tenants, cfg.Email),
//		notify.NewWebhook(sender, cfg.Webhook.URL),
//	}
//	svc := subscription.NewService(store, plans, gw, breakers, subscription.WithNotifier(notifier))
//
// Notices are sent after the subscription change is committed; a delivery
// failure is logged by the caller and never rolls the change back.
package notify
