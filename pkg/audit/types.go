package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Snapshot captures the audited entity before or after an action.
type Snapshot map[string]any

// Entry is a single append-only audit record tied to a subscription.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	Actor          string         `json:"actor"`
	Action         string         `json:"action"`
	Before         Snapshot       `json:"before,omitempty"`
	After          Snapshot       `json:"after,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Result         Result         `json:"result"`
	Error          string         `json:"error,omitempty"`
	IP             string         `json:"ip,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks if the entry has all required fields
func (e *Entry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEntryValidation)
	}
	if e.SubscriptionID == uuid.Nil {
		return fmt.Errorf("%w: subscription id is required", ErrEntryValidation)
	}
	return nil
}

// EntryOption applies configuration to an Entry during creation.
type EntryOption func(*Entry)

// WithSubscription sets the audited subscription and its tenant.
func WithSubscription(subscriptionID, tenantID uuid.UUID) EntryOption {
	return func(e *Entry) {
		e.SubscriptionID = subscriptionID
		e.TenantID = tenantID
	}
}

// WithBefore records the state prior to the action.
func WithBefore(s Snapshot) EntryOption {
	return func(e *Entry) { e.Before = s }
}

// WithAfter records the state after the action.
func WithAfter(s Snapshot) EntryOption {
	return func(e *Entry) { e.After = s }
}

// WithDetail adds a detail to the entry
func WithDetail(key string, value any) EntryOption {
	return func(e *Entry) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

// WithResult sets the entry result
func WithResult(result Result) EntryOption {
	return func(e *Entry) {
		e.Result = result
	}
}

// WithError marks the entry as failed and records the error message.
// A nil error leaves the entry untouched.
func WithError(err error) EntryOption {
	return func(e *Entry) {
		if err == nil {
			return
		}
		e.Result = ResultFailure
		e.Error = err.Error()
	}
}

// WithActor overrides the actor resolved from context.
func WithActor(actor string) EntryOption {
	return func(e *Entry) {
		if actor != "" {
			e.Actor = actor
		}
	}
}
