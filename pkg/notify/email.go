package notify

import (
	"context"
	"fmt"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Email sends dunning notices to the tenant's billing email.
type Email struct {
	mailer  Mailer
	tenants subscription.TenantResolver
	cfg     EmailConfig
	lang    language.Tag
}

// NewEmail creates an email notifier. Recipients are looked up with tenants.
func NewEmail(mailer Mailer, tenants subscription.TenantResolver, cfg EmailConfig) *Email {
	if mailer == nil {
		panic("notify: mailer cannot be nil")
	}
	if tenants == nil {
		panic("notify: tenant resolver cannot be nil")
	}
	lang, err := language.Parse(cfg.Language)
	if err != nil {
		lang = language.English
	}
	return &Email{mailer: mailer, tenants: tenants, cfg: cfg, lang: lang}
}

// NewMailer picks Postmark when tokens are configured and the dev mailer otherwise.
func NewMailer(cfg EmailConfig) (Mailer, error) {
	if cfg.PostmarkServerToken == "" && cfg.PostmarkAccountToken == "" {
		return NewDevMailer(cfg.DevDir), nil
	}
	return NewPostmarkMailer(cfg)
}

// Notify implements subscription.Notifier.
func (e *Email) Notify(ctx context.Context, n subscription.Notice) error {
	profile, err := e.tenants.Resolve(ctx, n.TenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve notice recipient: %w", err)
	}
	if profile.BillingEmail == "" {
		return ErrNoRecipient
	}

	msg, err := render(ctx, e.lang, e.cfg, profile, n)
	if err != nil {
		return err
	}
	return e.mailer.SendEmail(ctx, msg)
}
