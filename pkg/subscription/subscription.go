package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// Subscription binds a tenant to a plan for a billing period.
// Values are copied in and out of the Store; mutate only through Service.
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	TenantID           uuid.UUID  `json:"tenant_id"`
	PlanID             string     `json:"plan_id"`
	ScheduledPlanID    string     `json:"scheduled_plan_id,omitempty"` // applied at the next renewal
	Status             Status     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`
	NextPaymentDate    *time.Time `json:"next_payment_date,omitempty"`
	PaymentRetryCount  int        `json:"payment_retry_count"`
	MaxPaymentRetries  int        `json:"max_payment_retries"`
	AutoRenew          bool       `json:"auto_renew"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	PaymentMethod      string     `json:"payment_method,omitempty"` // gateway reference, never card data
	CancelReason       string     `json:"cancel_reason,omitempty"`
	SuspendReason      string     `json:"suspend_reason,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	SuspendedAt        *time.Time `json:"suspended_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

// Clone returns a deep copy.
func (s Subscription) Clone() Subscription {
	c := s
	c.LastPaymentDate = cloneTime(s.LastPaymentDate)
	c.NextPaymentDate = cloneTime(s.NextPaymentDate)
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.CanceledAt = cloneTime(s.CanceledAt)
	c.SuspendedAt = cloneTime(s.SuspendedAt)
	return c
}

// IsExpired reports whether the current period ended before now.
func (s Subscription) IsExpired(now time.Time) bool {
	return now.After(s.CurrentPeriodEnd)
}

// RemainingDays returns max(0, ceil((end - now) / 24h)).
func (s Subscription) RemainingDays(now time.Time) int {
	left := s.CurrentPeriodEnd.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// IsInGracePeriod reports whether now falls in (end, end + graceDays].
// Only active subscriptions have a grace period.
func (s Subscription) IsInGracePeriod(now time.Time, graceDays int) bool {
	if s.Status != StatusActive || graceDays <= 0 {
		return false
	}
	end := s.CurrentPeriodEnd
	return now.After(end) && !now.After(end.AddDate(0, 0, graceDays))
}

// Snapshot captures the audited fields.
func (s Subscription) Snapshot() audit.Snapshot {
	snap := audit.Snapshot{
		"status":              string(s.Status),
		"plan_id":             s.PlanID,
		"current_period_end":  s.CurrentPeriodEnd,
		"payment_retry_count": s.PaymentRetryCount,
		"auto_renew":          s.AutoRenew,
	}
	if s.ScheduledPlanID != "" {
		snap["scheduled_plan_id"] = s.ScheduledPlanID
	}
	if s.NextPaymentDate != nil {
		snap["next_payment_date"] = *s.NextPaymentDate
	}
	return snap
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
