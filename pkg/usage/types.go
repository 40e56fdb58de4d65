package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Decision is the outcome of a usage limit check.
type Decision int

const (
	Allowed Decision = iota
	AllowedWithWarning
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case AllowedWithWarning:
		return "allowed_with_warning"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Result explains a Decision.
type Result struct {
	Decision  Decision
	Metric    subscription.Metric
	Current   int64
	Requested int64
	Limit     subscription.Limit
}

// Projected returns the usage after the requested change.
func (r Result) Projected() int64 { return r.Current + r.Requested }

// Record is the accumulated usage of one metric in the current period.
type Record struct {
	TenantID    uuid.UUID
	Metric      subscription.Metric
	Value       int64
	PeriodStart time.Time
}

// Info is the usage of a metric against the plan limits.
type Info struct {
	Current int64
	Limit   subscription.Limit
	Percent int // of the hard limit, -1 for unlimited
}

func percentOf(current, limit int64) int {
	if limit == subscription.Unlimited {
		return -1
	}
	if limit <= 0 {
		return 100
	}
	return int(min(current*100/limit, 100))
}
