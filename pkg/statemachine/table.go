package statemachine

import (
	"context"
	"fmt"
	"slices"
)

// Table is a transition table that does not own a current state.
// It resolves the next state for any entity whose state is stored elsewhere,
// e.g. a database row, so a single table can serve many entities concurrently.
// A Table is immutable once built and safe for concurrent use.
type Table struct {
	transitions map[string]map[string][]Transition
}

// NewTable builds a table from the given transitions.
// Transitions sharing the same from/event pair are evaluated in declaration order.
func NewTable(transitions ...Transition) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]Transition)}
	for i, tr := range transitions {
		if err := t.add(tr); err != nil {
			return nil, fmt.Errorf("transition[%d]: %w", i, err)
		}
	}
	return t, nil
}

// MustNewTable works like NewTable but panics on invalid transitions.
func MustNewTable(transitions ...Transition) *Table {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// Define builds a Transition with the given guards and actions.
func Define(from, to State, event Event, opts ...TransitionOption) Transition {
	cfg := &transitionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return Transition{From: from, To: to, Event: event, Guards: cfg.guards, Actions: cfg.actions}
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}

	from := tr.From.Name()
	if _, ok := t.transitions[from]; !ok {
		t.transitions[from] = make(map[string][]Transition)
	}
	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[from][tr.Event.Name()] = append(t.transitions[from][tr.Event.Name()], tr)
	return nil
}

// Resolve returns the first transition from the given state whose guards pass.
func (t *Table) Resolve(ctx context.Context, from State, event Event, data any) (Transition, error) {
	if from == nil || event == nil {
		return Transition{}, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return Transition{}, &TransitionError{From: from.Name(), Event: event.Name()}
	}

	// First transition with passing guards wins (enables priority ordering)
	for _, tr := range candidates {
		if tr.allowed(ctx, from, event, data) {
			return tr, nil
		}
	}

	return Transition{}, &TransitionError{From: from.Name(), Event: event.Name(), Rejected: true}
}

// Next resolves the transition and runs its actions, returning the target state.
// The caller is responsible for persisting the returned state.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (State, error) {
	tr, err := t.Resolve(ctx, from, event, data)
	if err != nil {
		return nil, err
	}

	for _, action := range tr.Actions {
		if action != nil {
			if err := action(ctx, from, tr.To, event, data); err != nil {
				return nil, fmt.Errorf("action failed: %w", err)
			}
		}
	}

	return tr.To, nil
}

// Can reports whether the event may fire from the given state.
func (t *Table) Can(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Resolve(ctx, from, event, data)
	return err == nil
}

// Events lists the names of events defined for the given state, sorted.
// Guards are not evaluated.
func (t *Table) Events(from State) []string {
	if from == nil {
		return nil
	}
	events := make([]string, 0, len(t.transitions[from.Name()]))
	for name := range t.transitions[from.Name()] {
		events = append(events, name)
	}
	slices.Sort(events)
	return events
}

// Terminal reports whether no transitions leave the given state.
func (t *Table) Terminal(from State) bool {
	return from != nil && len(t.transitions[from.Name()]) == 0
}
