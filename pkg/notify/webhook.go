package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

// Event is the JSON body posted for a notice.
type Event struct {
	ID             string                     `json:"id"`
	Type           subscription.NoticeKind    `json:"type"`
	OccurredAt     time.Time                  `json:"occurred_at"`
	TenantID       uuid.UUID                  `json:"tenant_id"`
	SubscriptionID uuid.UUID                  `json:"subscription_id"`
	PlanID         string                     `json:"plan_id"`
	Amount         subscription.Money         `json:"amount"`
	AttemptNumber  int                        `json:"attempt_number"`
	NextAttempt    *time.Time                 `json:"next_attempt,omitempty"`
	Reason         subscription.FailureReason `json:"reason,omitempty"`
}

// NewEvent converts a notice. The ID is stable for the same notice, so
// receivers can drop redeliveries.
func NewEvent(n subscription.Notice) Event {
	return Event{
		ID:             fmt.Sprintf("%s:%s:%d", n.SubscriptionID, n.Kind, n.AttemptNumber),
		Type:           n.Kind,
		OccurredAt:     n.OccurredAt,
		TenantID:       n.TenantID,
		SubscriptionID: n.SubscriptionID,
		PlanID:         n.PlanID,
		Amount:         n.Amount,
		AttemptNumber:  n.AttemptNumber,
		NextAttempt:    n.NextAttempt,
		Reason:         n.Reason,
	}
}

// Webhook posts notices to a single endpoint.
type Webhook struct {
	sender *webhook.Sender
	url    string
}

// NewWebhook creates a webhook notifier.
func NewWebhook(sender *webhook.Sender, url string) *Webhook {
	if sender == nil {
		panic("notify: webhook sender cannot be nil")
	}
	return &Webhook{sender: sender, url: url}
}

// Notify implements subscription.Notifier.
func (w *Webhook) Notify(ctx context.Context, n subscription.Notice) error {
	return w.sender.Send(ctx, w.url, NewEvent(n))
}
