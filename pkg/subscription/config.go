package subscription

import "time"

// Config holds the lifecycle and dunning settings.
type Config struct {
	Retry RetryConfig
	// RenewalLeadTime lets a renewal run this long before the period ends.
	// Earlier renew requests return the subscription unchanged.
	RenewalLeadTime time.Duration `env:"RENEWAL_LEAD_TIME" envDefault:"24h"`
	// BatchSize bounds the page size of CheckExpired and ProcessDueRetries.
	BatchSize int `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
}

// RetryConfig controls the dunning schedule. Retry n waits
// BaseInterval * 2^(n-1), capped at MaxInterval.
type RetryConfig struct {
	MaxPaymentRetries int           `env:"PAYMENT_MAX_RETRIES" envDefault:"3"`
	BaseInterval      time.Duration `env:"PAYMENT_RETRY_BASE_INTERVAL" envDefault:"1h"`
	MaxInterval       time.Duration `env:"PAYMENT_RETRY_MAX_INTERVAL" envDefault:"72h"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxPaymentRetries: 3,
			BaseInterval:      time.Hour,
			MaxInterval:       72 * time.Hour,
		},
		RenewalLeadTime: 24 * time.Hour,
		BatchSize:       100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Retry.MaxPaymentRetries < 0 {
		c.Retry.MaxPaymentRetries = d.Retry.MaxPaymentRetries
	}
	if c.Retry.BaseInterval <= 0 {
		c.Retry.BaseInterval = d.Retry.BaseInterval
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = d.Retry.MaxInterval
	}
	if c.RenewalLeadTime < 0 {
		c.RenewalLeadTime = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}
