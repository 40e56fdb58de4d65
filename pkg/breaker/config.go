package breaker

import "time"

// Names of the dependencies protected by default.
const (
	IdentityService = "identity_service"
	PaymentService  = "payment_service"
	// WebhookService guards tenant notification endpoints. Registered by the
	// caller with a failure filter that ignores rejected payloads.
	WebhookService = "webhook_service"
)

// Config holds the thresholds of a single breaker. Unset variables keep the
// values already in the struct, so seed it with DefaultRegistryConfig before
// loading from env.
type Config struct {
	FailureThreshold  int           `env:"FAILURE_THRESHOLD"`   // consecutive failures that open the circuit
	Cooldown          time.Duration `env:"COOLDOWN"`            // time since the last failure before a trial call is let through
	CallTimeout       time.Duration `env:"CALL_TIMEOUT"`        // deadline applied to every call
	HalfOpenSuccesses int           `env:"HALF_OPEN_SUCCESSES"` // trial successes required to close
}

// RegistryConfig carries per-dependency settings, loadable from env with
// BREAKER_IDENTITY_*, BREAKER_PAYMENT_* and BREAKER_WEBHOOK_* variables.
type RegistryConfig struct {
	Identity Config `envPrefix:"BREAKER_IDENTITY_"`
	Payment  Config `envPrefix:"BREAKER_PAYMENT_"`
	Webhook  Config `envPrefix:"BREAKER_WEBHOOK_"`
}

// DefaultRegistryConfig returns the production thresholds:
// identity 5 failures / 60s, payment 3 failures / 120s, webhook 5 failures / 300s.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Identity: Config{FailureThreshold: 5, Cooldown: 60 * time.Second, CallTimeout: 5 * time.Second, HalfOpenSuccesses: 1},
		Payment:  Config{FailureThreshold: 3, Cooldown: 120 * time.Second, CallTimeout: 15 * time.Second, HalfOpenSuccesses: 1},
		Webhook:  Config{FailureThreshold: 5, Cooldown: 300 * time.Second, CallTimeout: 10 * time.Second, HalfOpenSuccesses: 1},
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = 1
	}
	return c
}
