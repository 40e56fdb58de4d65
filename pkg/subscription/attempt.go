package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Outcome of a payment attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// FailureReason classifies why a charge did not succeed.
type FailureReason string

const (
	ReasonDeclined     FailureReason = "declined"
	ReasonCircuitOpen  FailureReason = "circuit_open"
	ReasonTimeout      FailureReason = "timeout"
	ReasonGatewayError FailureReason = "gateway_error"
)

// Purpose of a charge.
type Purpose string

const (
	PurposeRenewal         Purpose = "renewal"
	PurposeRetry           Purpose = "retry"
	PurposeReactivation    Purpose = "reactivation"
	PurposePlanChange      Purpose = "plan_change"
	PurposeExtension       Purpose = "extension"
	PurposeTrialConversion Purpose = "trial_conversion"
)

// PaymentAttempt is an append-only record of one charge.
type PaymentAttempt struct {
	ID             uuid.UUID     `json:"id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	AttemptNumber  int           `json:"attempt_number"` // retry count at the time of the charge, 0 for the first try
	Amount         Money         `json:"amount"`
	Purpose        Purpose       `json:"purpose"`
	Outcome        Outcome       `json:"outcome"`
	Reason         FailureReason `json:"reason,omitempty"`
	Error          string        `json:"error,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Succeeded reports whether the charge went through.
func (a PaymentAttempt) Succeeded() bool { return a.Outcome == OutcomeSucceeded }
