// Package httpserver runs the operations HTTP endpoint of the billing daemon:
// liveness and readiness probes, Prometheus metrics, circuit breaker
// inspection and the audit trail query.
//
// Server wraps net/http with configurable timeouts and graceful shutdown
// driven by the context passed to Run. NewRouter mounts the endpoints on a
// chi router; any route whose dependency is nil in Routes is left out.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	err := srv.Run(ctx, httpserver.NewRouter(httpserver.Routes{
//		Checks:   []httpserver.Check{{Name: "postgres", Fn: postgres.Healthcheck(pool)}},
//		Breakers: breakers,
//		Audit:    postgres.NewAuditStorage(pool),
//		Metrics:  metrics.Handler(reg),
//	}))
//
// # Errors
//
// Run wraps listen errors with ErrStart, while Shutdown wraps underlying
// shutdown errors with ErrShutdown. Use errors.Is to distinguish them.
package httpserver
