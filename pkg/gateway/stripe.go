package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Stripe charges saved cards with off-session PaymentIntents.
//
// ChargeRequest.PaymentMethod is either a payment method ID ("pm_...") or
// "customer:payment_method" ("cus_...:pm_..."). Stripe requires the customer
// for payment methods attached to one.
type Stripe struct {
	api *client.API
}

// NewStripe creates the Stripe adapter. Network retries are disabled; retrying
// is the caller's business.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key", ErrMissingCredentials)
	}

	bc := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		bc.URL = stripe.String(cfg.APIURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, bc),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, bc),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, bc),
	})

	return &Stripe{api: api}, nil
}

// Charge implements subscription.PaymentGateway.
func (s *Stripe) Charge(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error) {
	customer, method, err := splitStripeMethod(req.PaymentMethod)
	if err != nil {
		return subscription.ChargeResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Amount),
		Currency:      stripe.String(strings.ToLower(req.Amount.Currency)),
		PaymentMethod: stripe.String(method),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if customer != "" {
		params.Customer = stripe.String(customer)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("subscription_id", req.SubscriptionID.String())
	params.AddMetadata("tenant_id", req.TenantID.String())
	params.AddMetadata("plan_id", req.PlanID)
	params.AddMetadata("purpose", string(req.Purpose))

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			res := subscription.ChargeResult{Declined: true, DeclineReason: stripeDeclineReason(se)}
			if se.PaymentIntent != nil {
				res.TransactionID = se.PaymentIntent.ID
			}
			return res, nil
		}
		return subscription.ChargeResult{}, fmt.Errorf("failed to create stripe payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return subscription.ChargeResult{TransactionID: pi.ID}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		return subscription.ChargeResult{TransactionID: pi.ID, Declined: true, DeclineReason: "authentication_required"}, nil
	default:
		return subscription.ChargeResult{TransactionID: pi.ID, Declined: true, DeclineReason: string(pi.Status)}, nil
	}
}

func stripeDeclineReason(se *stripe.Error) string {
	if se.DeclineCode != "" {
		return string(se.DeclineCode)
	}
	if se.Code != "" {
		return string(se.Code)
	}
	return "card_declined"
}

func splitStripeMethod(ref string) (customer, method string, err error) {
	customer, method, found := strings.Cut(ref, ":")
	if !found {
		customer, method = "", ref
	}
	if method == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPayment, ref)
	}
	return customer, method, nil
}
