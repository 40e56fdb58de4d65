package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition: from, to, or event cannot be nil")
	ErrInvalidEvent      = errors.New("invalid event: event cannot be nil")
	// ErrNoTransition means the table defines nothing for the from/event pair.
	ErrNoTransition = errors.New("no transition defined")
	// ErrTransitionRejected means every candidate transition was blocked by its guards.
	ErrTransitionRejected = errors.New("transition rejected by guards")
)

// TransitionError carries the state and event a lookup failed for.
// It unwraps to ErrNoTransition or ErrTransitionRejected.
type TransitionError struct {
	From     string
	Event    string
	Rejected bool
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s on %s", e.Unwrap(), e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	if e.Rejected {
		return ErrTransitionRejected
	}
	return ErrNoTransition
}
