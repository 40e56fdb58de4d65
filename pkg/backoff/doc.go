// Package backoff provides retry delay strategies shared by payment dunning,
// outbound webhooks and connection bootstrapping.
//
// Exponential with a zero JitterFactor produces the deterministic
// base * 2^(attempt-1) schedule used for payment retries:
//
//	b := backoff.Exponential{InitialInterval: time.Hour, MaxInterval: 72 * time.Hour, Multiplier: 2}
//	b.NextInterval(1) // 1h
//	b.NextInterval(3) // 4h
package backoff
