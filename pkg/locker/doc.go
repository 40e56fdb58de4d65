// Package locker provides per-key mutual exclusion for subscription mutations.
//
// Memory is an in-process keyed mutex for single-instance deployments and tests.
// Redis uses SET NX PX with a random token and a compare-and-delete release
// script, for deployments where several processes (API replicas, the sweep
// worker) may mutate the same subscription.
//
// Both satisfy:
//
//	Lock(ctx context.Context, key string) (unlock func(), error)
package locker
