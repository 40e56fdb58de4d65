package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// DeclinePrefix marks payment methods the fake gateway declines.
const DeclinePrefix = "pm_declined"

// Fake approves every charge except those for payment methods starting with
// DeclinePrefix. Replaying an idempotency key returns the first result.
// Used for local runs and demos.
type Fake struct {
	mu      sync.Mutex
	results map[string]subscription.ChargeResult
}

// NewFake creates an empty fake gateway.
func NewFake() *Fake {
	return &Fake{results: make(map[string]subscription.ChargeResult)}
}

// Charge implements subscription.PaymentGateway.
func (f *Fake) Charge(ctx context.Context, req subscription.ChargeRequest) (subscription.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return subscription.ChargeResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if res, ok := f.results[req.IdempotencyKey]; ok {
		return res, nil
	}

	res := subscription.ChargeResult{TransactionID: fmt.Sprintf("fake_%s", uuid.NewString())}
	if strings.HasPrefix(req.PaymentMethod, DeclinePrefix) {
		res.Declined = true
		res.DeclineReason = "card_declined"
	}
	if req.IdempotencyKey != "" {
		f.results[req.IdempotencyKey] = res
	}
	return res, nil
}

// Charges returns the number of distinct charges seen.
func (f *Fake) Charges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}
