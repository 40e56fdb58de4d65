package subscription

import (
	"fmt"
	"time"
)

// Metric is a metered tenant resource.
type Metric string

const (
	MetricAPICalls  Metric = "api_calls"
	MetricStorageGB Metric = "storage_gb" // Measured in GB
	MetricUsers     Metric = "users"
	MetricBranches  Metric = "branches"
)

const (
	// Unlimited indicates no limit for a metric (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`     // Amount in smallest currency unit (cents for USD)
	Currency string `json:"currency" yaml:"currency"` // ISO 4217 currency code
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// Add returns m + o. Currencies are expected to match; the receiver's currency wins.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.currencyOr(o)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.currencyOr(o)}
}

// Mul returns m * n.
func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

func (m Money) currencyOr(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// BillingInterval represents the billing frequency for a subscription plan.
type BillingInterval string

const (
	BillingIntervalMonthly   BillingInterval = "monthly"
	BillingIntervalQuarterly BillingInterval = "quarterly"
	BillingIntervalBiannual  BillingInterval = "biannual"
	BillingIntervalAnnual    BillingInterval = "annual"
)

// Months returns the number of calendar months in one interval, 0 for unknown values.
func (i BillingInterval) Months() int {
	switch i {
	case BillingIntervalMonthly:
		return 1
	case BillingIntervalQuarterly:
		return 3
	case BillingIntervalBiannual:
		return 6
	case BillingIntervalAnnual:
		return 12
	default:
		return 0
	}
}

// Valid reports whether the interval is known.
func (i BillingInterval) Valid() bool { return i.Months() > 0 }

// AddTo advances t by n intervals. The day of month is clamped to the last day
// of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func (i BillingInterval) AddTo(t time.Time, n int) time.Time {
	return addMonths(t, i.Months()*n)
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, lastDay)-1)
}

// Limit holds the soft (warning) and hard (deny) thresholds of a metric.
// Unlimited disables the corresponding threshold.
type Limit struct {
	Soft int64 `json:"soft" yaml:"soft"`
	Hard int64 `json:"hard" yaml:"hard"`
}

// OverageRate prices usage above the included quantity.
type OverageRate struct {
	Included  int64 `json:"included" yaml:"included"`
	UnitPrice int64 `json:"unit_price" yaml:"unit_price"` // minor units per unit above Included
}

// ChangeMode selects when a plan change takes effect.
type ChangeMode string

const (
	ChangeImmediate  ChangeMode = "immediate"
	ChangeEndOfCycle ChangeMode = "end_of_cycle"
)

// Valid reports whether the mode is known.
func (m ChangeMode) Valid() bool {
	return m == ChangeImmediate || m == ChangeEndOfCycle
}
