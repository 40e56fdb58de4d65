// Package statemachine implements finite-state-machine transitions built from
// two minimal interfaces, State and Event.
//
// A Table resolves transitions for entities whose state lives elsewhere
// (database rows, cached records). It holds no current state, so one table
// serves every entity and is safe for concurrent use.
//
// Guards accept or reject a transition at runtime; actions run side effects
// before the state changes and abort the transition on error. When several
// transitions share a from/event pair the first one whose guards pass wins.
//
// # Usage
//
//	const (
//	    Active    = statemachine.StringState("active")
//	    Suspended = statemachine.StringState("suspended")
//	    Suspend   = statemachine.StringEvent("suspend")
//	)
//
//	table := statemachine.MustNewTable(
//	    statemachine.Define(Active, Suspended, Suspend),
//	)
//
//	next, err := table.Next(ctx, Active, Suspend, nil)
//
// # Error Handling
//
// Lookup failures are *TransitionError values. Match them with errors.Is
// against ErrNoTransition (the from/event pair is undefined) or
// ErrTransitionRejected (every candidate was blocked by guards).
package statemachine
