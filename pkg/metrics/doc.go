// Package metrics exports billing activity as Prometheus metrics.
//
// A Collector is registered once at startup and handed to the components it
// observes: the subscription service (as a subscription.Observer), every
// circuit breaker (through BreakerListener) and the sweeper (through
// ObserveSweep, suitable for sweep.WithReportHook).
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewCollector(reg)
//	breakers := breaker.NewDefaultRegistry(cfg, breaker.WithListener(m.BreakerListener()))
//	svc := subscription.NewService(store, plans, gw, breakers, subscription.WithObserver(m))
//	sweeper := sweep.New(store, svc, sweep.WithReportHook(m.ObserveSweep))
//
// All metric names share the billing_ namespace.
package metrics
