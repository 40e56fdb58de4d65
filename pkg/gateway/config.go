package gateway

// Provider names accepted by New.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
	ProviderFake   = "fake"
)

// Config selects and configures the payment provider.
type Config struct {
	Provider string       `env:"GATEWAY_PROVIDER" envDefault:"fake"`
	Stripe   StripeConfig `envPrefix:"STRIPE_"`
	Paddle   PaddleConfig `envPrefix:"PADDLE_"`
}

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey string `env:"SECRET_KEY"`
	// APIURL overrides the Stripe endpoint, e.g. for stripe-mock.
	APIURL string `env:"API_URL"`
}

// PaddleConfig configures the Paddle adapter.
type PaddleConfig struct {
	APIKey      string `env:"API_KEY"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	// Prices maps plan IDs to Paddle price IDs, e.g. "basic:pri_01h...,pro:pri_01j...".
	Prices map[string]string `env:"PRICES" envKeyValSeparator:":"`
}
