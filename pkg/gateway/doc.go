// Package gateway adapts payment providers to subscription.PaymentGateway.
//
// Stripe charges saved cards with off-session PaymentIntents
// (github.com/stripe/stripe-go/v82). Paddle creates automatically collected
// transactions (github.com/PaddleHQ/paddle-go-sdk/v4). Fake is an in-process
// gateway for local runs.
//
// Adapters report card declines as a ChargeResult with Declined set and return
// errors only for transport and provider failures, so that the circuit
// breaker in front of the gateway counts outages and not declines.
//
//	gw, err := gateway.New(cfg)
//	svc := subscription.NewService(store, plans, gw, breakers)
package gateway
