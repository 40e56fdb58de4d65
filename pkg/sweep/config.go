package sweep

// Config controls batching and scheduling of sweeps.
type Config struct {
	BatchSize   int `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
	Concurrency int `env:"SWEEP_CONCURRENCY" envDefault:"8"`
	// Cron specs used by the daemon, robfig/cron syntax.
	ExpirySchedule string `env:"SWEEP_EXPIRY_SCHEDULE" envDefault:"@every 5m"`
	RetrySchedule  string `env:"SWEEP_RETRY_SCHEDULE" envDefault:"@every 1m"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}
