package subscription

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/billingcore/pkg/statemachine"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusPending   Status = "pending" // payment failed, dunning in progress
	StatusSuspended Status = "suspended"
	StatusCanceled  Status = "canceled"
	StatusExpired   Status = "expired"
)

var statuses = []Status{StatusTrial, StatusActive, StatusPending, StatusSuspended, StatusCanceled, StatusExpired}

// Name implements statemachine.State.
func (s Status) Name() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions leave s.
func (s Status) Terminal() bool {
	return s.Valid() && transitions.Terminal(s)
}

// ParseStatus converts a stored value into a Status, rejecting unknown values.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidState, v)
	}
	return s, nil
}

// Event triggers a status transition.
type Event string

const (
	EventConvert      Event = "convert"
	EventRenew        Event = "renew"
	EventChargeFailed Event = "charge_failed"
	EventChangePlan   Event = "change_plan"
	EventSuspend      Event = "suspend"
	EventReactivate   Event = "reactivate"
	EventCancel       Event = "cancel"
	EventExpire       Event = "expire"
)

// Name implements statemachine.Event.
func (e Event) Name() string { return string(e) }

var transitions = statemachine.MustNewTable(
	statemachine.Define(StatusTrial, StatusActive, EventConvert),
	statemachine.Define(StatusTrial, StatusPending, EventChargeFailed),
	statemachine.Define(StatusTrial, StatusCanceled, EventCancel),
	statemachine.Define(StatusTrial, StatusExpired, EventExpire),

	statemachine.Define(StatusActive, StatusActive, EventRenew),
	statemachine.Define(StatusActive, StatusPending, EventChargeFailed),
	statemachine.Define(StatusActive, StatusActive, EventChangePlan),
	statemachine.Define(StatusActive, StatusSuspended, EventSuspend),
	statemachine.Define(StatusActive, StatusCanceled, EventCancel),
	statemachine.Define(StatusActive, StatusExpired, EventExpire),

	statemachine.Define(StatusPending, StatusActive, EventRenew),
	statemachine.Define(StatusPending, StatusPending, EventChargeFailed),
	statemachine.Define(StatusPending, StatusSuspended, EventSuspend),
	statemachine.Define(StatusPending, StatusCanceled, EventCancel),

	statemachine.Define(StatusSuspended, StatusActive, EventReactivate),
	statemachine.Define(StatusSuspended, StatusCanceled, EventCancel),
)

// CanTransition reports whether event is allowed from status.
func CanTransition(from Status, event Event) bool {
	return transitions.Can(context.Background(), from, event, nil)
}

// nextStatus resolves the target status for event, or ErrInvalidState.
func nextStatus(from Status, event Event) (Status, error) {
	to, err := transitions.Next(context.Background(), from, event, nil)
	if err != nil {
		return "", fmt.Errorf("%w: cannot %s a %s subscription: %w", ErrInvalidState, event, from, err)
	}
	return to.(Status), nil
}
