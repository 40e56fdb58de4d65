// Package sweep drives the periodic passes over due subscriptions.
//
// Run handles subscriptions whose billing period has ended and RunRetries
// charges pending subscriptions whose next dunning attempt is due. Both page
// through the store with a keyset cursor and process each page with bounded
// concurrency. A failure on one subscription is recorded in the Report and
// never stops the run.
//
//	sweeper := sweep.New(store, svc, sweep.WithConfig(cfg))
//	report, err := sweeper.Run(ctx)
//	report, err = sweeper.RunRetries(ctx, sweep.ForTenant(tenantID), sweep.DryRun())
package sweep
