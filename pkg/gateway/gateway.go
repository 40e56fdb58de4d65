package gateway

import (
	"fmt"
	"strings"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// New builds the gateway named by cfg.Provider.
func New(cfg Config) (subscription.PaymentGateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderStripe:
		return NewStripe(cfg.Stripe)
	case ProviderPaddle:
		return NewPaddle(cfg.Paddle)
	case ProviderFake, "":
		return NewFake(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
