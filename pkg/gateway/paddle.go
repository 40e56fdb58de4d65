package gateway

import (
	"context"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// TransactionCreator is the subset of the Paddle SDK the adapter uses.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

// Paddle charges the customer's saved payment method through an automatically
// collected Paddle transaction for the plan's catalog price.
//
// ChargeRequest.PaymentMethod holds the Paddle customer ID ("ctm_...").
// Paddle bills catalog prices, so the charged amount is the configured price
// of the plan; the request amount is sent in custom data for reconciliation.
type Paddle struct {
	transactions TransactionCreator
	prices       map[string]string
}

// NewPaddle creates the Paddle adapter.
func NewPaddle(cfg PaddleConfig) (*Paddle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: paddle api key", ErrMissingCredentials)
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return NewPaddleWithClient(client.TransactionsClient, cfg.Prices), nil
}

// NewPaddleWithClient creates the adapter around an existing transactions client.
func NewPaddleWithClient(transactions TransactionCreator, prices map[string]string) *Paddle {
	if transactions == nil {
		panic("gateway: paddle transactions client cannot be nil")
	}
	return &Paddle{transactions: transactions, prices: prices}
}

// Charge implements subscription.PaymentGateway.
func (p *Paddle) Charge(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error) {
	priceID, ok := p.prices[req.PlanID]
	if !ok {
		return subscription.ChargeResult{}, fmt.Errorf("%w: %q", ErrUnmappedPlan, req.PlanID)
	}
	if !strings.HasPrefix(req.PaymentMethod, "ctm_") {
		return subscription.ChargeResult{}, fmt.Errorf("%w: %q", ErrInvalidPayment, req.PaymentMethod)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	txn, err := p.transactions.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:          []paddle.CreateTransactionItems{*item},
		CustomerID:     paddle.PtrTo(req.PaymentMethod),
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
		CustomData: paddle.CustomData{
			"idempotency_key": req.IdempotencyKey,
			"subscription_id": req.SubscriptionID.String(),
			"tenant_id":       req.TenantID.String(),
			"purpose":         string(req.Purpose),
			"amount":          req.Amount.String(),
		},
	})
	if err != nil {
		return subscription.ChargeResult{}, fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	switch txn.Status {
	case paddle.TransactionStatusPaid, paddle.TransactionStatusCompleted:
		return subscription.ChargeResult{TransactionID: txn.ID}, nil
	default:
		return subscription.ChargeResult{
			TransactionID: txn.ID,
			Declined:      true,
			DeclineReason: string(txn.Status),
		}, nil
	}
}
