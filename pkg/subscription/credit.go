package subscription

import (
	"time"

	"github.com/google/uuid"
)

// CreditReasonProration marks credits issued for an immediate downgrade.
const CreditReasonProration = "proration"

// creditLifetime bounds how long an unused credit may be applied.
const creditLifetime = 365 * 24 * time.Hour

// Credit is an amount owed to the tenant, consumed by the next renewal charge.
type Credit struct {
	ID             uuid.UUID  `json:"id"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	Amount         Money      `json:"amount"`
	Reason         string     `json:"reason"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Usable reports whether the credit can still be applied at now.
func (c Credit) Usable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}

// applyCredits subtracts usable credits from amount in order and returns the
// remaining amount with the IDs of the credits consumed. A credit is consumed
// whole even when it exceeds the remaining amount.
func applyCredits(amount Money, credits []Credit, now time.Time) (Money, []uuid.UUID) {
	var used []uuid.UUID
	for _, c := range credits {
		if amount.Amount <= 0 {
			break
		}
		if !c.Usable(now) {
			continue
		}
		amount.Amount = max(0, amount.Amount-c.Amount.Amount)
		used = append(used, c.ID)
	}
	return amount, used
}
