package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/billingcore/pkg/identity"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

type emailData struct {
	Product     string
	TenantName  string
	PlanID      string
	Amount      string
	Reason      string
	NextAttempt string
	Support     string
}

// noticeEmail returns the subject and the HTML body component for n.
func noticeEmail(kind subscription.NoticeKind, d emailData) (string, templ.Component, error) {
	var (
		subject string
		lines   []string
	)
	switch kind {
	case subscription.NoticePaymentFailed:
		subject = fmt.Sprintf("%s: your payment did not go through", d.Product)
		lines = append(lines, fmt.Sprintf("We could not charge %s for your %s plan.", d.Amount, d.PlanID))
		if d.Reason != "" {
			lines = append(lines, "Reason: "+d.Reason+".")
		}
		if d.NextAttempt != "" {
			lines = append(lines, fmt.Sprintf("We will retry automatically on %s. You can update your payment method before then.", d.NextAttempt))
		}
	case subscription.NoticeRetriesExhausted:
		subject = fmt.Sprintf("%s: your subscription has been suspended", d.Product)
		lines = append(lines,
			fmt.Sprintf("After several attempts we could not charge %s for your %s plan.", d.Amount, d.PlanID),
			"Your subscription is suspended. Update your payment method to reactivate it.",
		)
	case subscription.NoticeSubscriptionExpired:
		subject = fmt.Sprintf("%s: your subscription has expired", d.Product)
		lines = append(lines, fmt.Sprintf("Your %s subscription has ended. Subscribe again at any time to restore access.", d.PlanID))
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownNotice, kind)
	}

	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html><html><body style="font-family:sans-serif">`)
		fmt.Fprintf(&b, "<p>Hi %s,</p>", templ.EscapeString(d.TenantName))
		for _, l := range lines {
			fmt.Fprintf(&b, "<p>%s</p>", templ.EscapeString(l))
		}
		fmt.Fprintf(&b, `<p>Questions? Reply to this email or write to <a href="mailto:%[1]s">%[1]s</a>.</p>`,
			templ.EscapeString(d.Support))
		b.WriteString("</body></html>")
		_, err := io.WriteString(w, b.String())
		return err
	})
	return subject, body, nil
}

// render builds the email for n addressed to the tenant.
func render(ctx context.Context, tag language.Tag, cfg EmailConfig, p identity.Profile, n subscription.Notice) (Message, error) {
	name := p.Name
	if name == "" {
		name = "there"
	}
	d := emailData{
		Product:    cfg.ProductName,
		TenantName: name,
		PlanID:     n.PlanID,
		Amount:     FormatMoney(tag, n.Amount),
		Reason:     strings.ReplaceAll(string(n.Reason), "_", " "),
		Support:    cfg.SupportEmail,
	}
	if n.NextAttempt != nil {
		d.NextAttempt = n.NextAttempt.UTC().Format("January 2, 2006 15:04 MST")
	}

	subject, body, err := noticeEmail(n.Kind, d)
	if err != nil {
		return Message{}, err
	}

	var sb strings.Builder
	if err := body.Render(ctx, &sb); err != nil {
		return Message{}, fmt.Errorf("failed to render email: %w", err)
	}
	return Message{To: p.BillingEmail, Subject: subject, BodyHTML: sb.String(), Tag: string(n.Kind)}, nil
}
