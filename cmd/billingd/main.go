// Command billingd runs the subscription billing sweeps on a schedule and
// serves the operations endpoint.
//
//	billingd                       run the scheduler until SIGINT or SIGTERM
//	billingd -once                 run one expiry and one retry sweep, then exit
//	billingd -once -dry-run        list what would be processed
//	billingd -once -tenant <uuid>  restrict the one-shot sweeps to one tenant
//	billingd -migrate              apply database migrations and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/catalog"
	"github.com/dmitrymomot/billingcore/pkg/config"
	"github.com/dmitrymomot/billingcore/pkg/gateway"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/identity"
	"github.com/dmitrymomot/billingcore/pkg/locker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/notify"
	"github.com/dmitrymomot/billingcore/pkg/redis"
	"github.com/dmitrymomot/billingcore/pkg/storage/postgres"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/sweep"
	"github.com/dmitrymomot/billingcore/pkg/usage"
	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

type flags struct {
	once    bool
	dryRun  bool
	tenant  string
	migrate bool
	envFile string
}

func main() {
	var f flags
	flag.BoolVar(&f.once, "once", false, "run one expiry and one retry sweep, then exit")
	flag.BoolVar(&f.dryRun, "dry-run", false, "with -once, list due subscriptions without processing them")
	flag.StringVar(&f.tenant, "tenant", "", "with -once, restrict sweeps to one tenant ID")
	flag.BoolVar(&f.migrate, "migrate", false, "apply database migrations and exit")
	flag.StringVar(&f.envFile, "env-file", "", "dotenv file to load before reading the environment")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		slog.Error("billingd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg := defaultConfig()
	var loadOpts []config.Option
	if f.envFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFiles(f.envFile))
	}
	if err := config.Load(&cfg, loadOpts...); err != nil {
		return err
	}

	log := logger.New(cfg.Log.Options()...)
	slog.SetDefault(log)

	var runOpts []sweep.RunOption
	if f.dryRun {
		runOpts = append(runOpts, sweep.DryRun())
	}
	if f.tenant != "" {
		id, err := uuid.Parse(f.tenant)
		if err != nil {
			return fmt.Errorf("invalid -tenant: %w", err)
		}
		runOpts = append(runOpts, sweep.ForTenant(id))
	}

	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}
	if f.migrate {
		log.InfoContext(ctx, "migrations applied")
		return nil
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	breakers := breaker.NewDefaultRegistry(cfg.Breakers, breaker.WithListener(collector.BreakerListener()))
	breakers.Register(breaker.WebhookService, cfg.Breakers.Webhook, breaker.WithFailureFilter(webhook.IsRetryable))
	collector.TrackBreakers(breakers)

	tenants := identity.NewResolver(
		identity.NewClient(cfg.Identity, nil),
		breakers,
		identity.WithCache(identity.NewRedisCache(rdb, cfg.Identity.CachePrefix, cfg.Identity.CacheTTL)),
		identity.WithLogger(log),
	)

	plans, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg, tenants, breakers, log)
	if err != nil {
		return err
	}

	store := postgres.NewStore(pool)
	svc := subscription.NewService(store, plans, gw, breakers,
		subscription.WithConfig(cfg.Billing),
		subscription.WithLogger(log),
		subscription.WithLocker(locker.NewRedis(rdb, cfg.Lock)),
		subscription.WithTenantResolver(tenants),
		subscription.WithUsageMeter(usage.NewMonitor(usage.NewRedisStore(rdb, cfg.Usage), usage.WithLogger(log))),
		subscription.WithNotifier(notifier),
		subscription.WithObserver(collector),
	)

	sweeper := sweep.New(store, svc,
		sweep.WithConfig(cfg.Sweep),
		sweep.WithLogger(log),
		sweep.WithReportHook(collector.ObserveSweep),
	)

	if f.once {
		return runOnce(ctx, sweeper, runOpts, log)
	}
	if f.dryRun || f.tenant != "" {
		return errors.New("-dry-run and -tenant require -once")
	}

	scheduler, err := newScheduler(ctx, cfg.Sweep, sweeper, log)
	if err != nil {
		return err
	}

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	router := httpserver.NewRouter(httpserver.Routes{
		Logger: log,
		Checks: []httpserver.Check{
			{Name: "postgres", Fn: postgres.Healthcheck(pool)},
			{Name: "redis", Fn: redis.Healthcheck(rdb)},
		},
		Breakers: breakers,
		Audit:    postgres.NewAuditStorage(pool),
		Metrics:  metrics.Handler(reg),
	})

	scheduler.Start()
	log.InfoContext(ctx, "billingd started",
		slog.String("expiry_schedule", cfg.Sweep.ExpirySchedule),
		slog.String("retry_schedule", cfg.Sweep.RetrySchedule))

	err = srv.Run(ctx, router)

	// Wait for in-flight sweeps; they observe the canceled context and stop between items.
	<-scheduler.Stop().Done()
	log.Info("billingd stopped")
	return err
}

func newNotifier(cfg appConfig, tenants subscription.TenantResolver, breakers *breaker.Registry, log *slog.Logger) (subscription.Notifier, error) {
	mailer, err := notify.NewMailer(cfg.Email)
	if err != nil {
		return nil, err
	}
	notifiers := notify.Multi{notify.NewEmail(mailer, tenants, cfg.Email)}

	if cfg.Webhook.URL != "" {
		sender := webhook.NewSender(
			webhook.WithSecret(cfg.Webhook.Secret),
			webhook.WithBreaker(breakers.MustGet(breaker.WebhookService)),
			webhook.WithLogger(log),
		)
		notifiers = append(notifiers, notify.NewWebhook(sender, cfg.Webhook.URL))
	}
	return notifiers, nil
}

func newScheduler(ctx context.Context, cfg sweep.Config, sweeper *sweep.Sweeper, log *slog.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log.With(logger.Component("cron"))}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	jobs := []struct {
		spec string
		kind sweep.Kind
		run  func(context.Context, ...sweep.RunOption) (sweep.Report, error)
	}{
		{cfg.ExpirySchedule, sweep.KindExpiry, sweeper.Run},
		{cfg.RetrySchedule, sweep.KindRetry, sweeper.RunRetries},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, func() {
			ctx := audit.WithActorContext(ctx, "sweep:"+string(job.kind))
			if _, err := job.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorContext(ctx, "sweep aborted", slog.String("kind", string(job.kind)), logger.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", job.kind, job.spec, err)
		}
	}
	return c, nil
}

func runOnce(ctx context.Context, sweeper *sweep.Sweeper, opts []sweep.RunOption, log *slog.Logger) error {
	expiry, err := sweeper.Run(audit.WithActorContext(ctx, "sweep:expiry"), opts...)
	if err != nil {
		return err
	}
	logReport(ctx, log, expiry)

	retry, err := sweeper.RunRetries(audit.WithActorContext(ctx, "sweep:retry"), opts...)
	if err != nil {
		return err
	}
	logReport(ctx, log, retry)

	if n := expiry.Failed + retry.Failed; n > 0 {
		return fmt.Errorf("%d subscriptions failed: %w", n, errors.Join(append(expiry.Errors, retry.Errors...)...))
	}
	return nil
}

func logReport(ctx context.Context, log *slog.Logger, r sweep.Report) {
	attrs := []any{
		slog.String("kind", string(r.Kind)),
		slog.Bool("dry_run", r.DryRun),
		slog.Int("scanned", r.Scanned),
		slog.Int("renewed", r.Renewed),
		slog.Int("recovered", r.Recovered),
		slog.Int("pending", r.Pending),
		slog.Int("suspended", r.Suspended),
		slog.Int("expired", r.Expired),
		slog.Int("in_grace", r.InGrace),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
	}
	if r.DryRun {
		ids := make([]string, len(r.Due))
		for i, id := range r.Due {
			ids[i] = id.String()
		}
		attrs = append(attrs, slog.Any("due", ids))
	}
	log.InfoContext(ctx, "sweep report", attrs...)
}
