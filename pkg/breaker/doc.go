// Package breaker isolates the billing core from failing external dependencies
// such as the identity service and the payment gateway.
//
// A Breaker starts closed and counts consecutive failures. Once FailureThreshold
// is reached it opens and rejects calls with ErrCircuitOpen, without touching the
// dependency, until Cooldown has passed since the last failure. A call admitted
// before the trip that fails late restarts the cooldown. Then a single trial call is
// admitted (half-open): success closes the breaker and resets the counter, failure
// re-opens it for another cooldown.
//
// Every call runs under its own deadline (CallTimeout), bounded by any deadline
// on the caller's context. A call that does not return in time fails with
// ErrDependencyTimeout and counts as a failure. A call canceled by the caller is
// not held against the dependency.
//
// Breakers are owned by a Registry that is built at startup and injected into
// the components using it:
//
//	reg := breaker.NewDefaultRegistry(breaker.DefaultRegistryConfig(),
//	    breaker.WithListener(func(name string, from, to breaker.State) {
//	        log.Info("breaker state changed", "dependency", name, "from", from, "to", to)
//	    }),
//	)
//
//	err := reg.Call(ctx, breaker.PaymentService, func(ctx context.Context) error {
//	    return gateway.Charge(ctx, req)
//	})
//	if breaker.IsCircuitOpen(err) {
//	    // short-circuited, dependency not contacted
//	}
//
// Execute returns a value alongside the error for operations that produce one.
package breaker
