package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// GaugeFunc returns the current value of a metric that is counted at the
// source, such as the number of users, instead of accumulated per period.
// Should be fast: cache or aggregate at repository level.
type GaugeFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// GaugeRegistry maps a metric to its GaugeFunc.
// Not thread-safe: register all gauges at startup only.
type GaugeRegistry map[subscription.Metric]GaugeFunc

// NewGaugeRegistry returns a new, empty GaugeRegistry.
func NewGaugeRegistry() GaugeRegistry {
	return make(GaugeRegistry)
}

// Register sets or replaces the GaugeFunc for the given metric. Panics if fn is nil.
func (r GaugeRegistry) Register(metric subscription.Metric, fn GaugeFunc) {
	if fn == nil {
		panic(fmt.Sprintf("usage: GaugeFunc for metric %q cannot be nil", metric))
	}
	r[metric] = fn
}
