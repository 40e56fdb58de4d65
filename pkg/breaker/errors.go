package breaker

import "errors"

var (
	// ErrCircuitOpen is returned without invoking the dependency while its breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrDependencyTimeout is returned when the dependency does not answer within the call timeout.
	ErrDependencyTimeout = errors.New("dependency call timed out")
	// ErrUnknownDependency is returned by registry lookups for unregistered names.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsTimeout checks if an error indicates the dependency call timed out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDependencyTimeout)
}
