package sweep

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a sweep.
type Kind string

const (
	KindExpiry Kind = "expiry"
	KindRetry  Kind = "retry"
)

// Report summarizes one sweep run.
type Report struct {
	Kind      Kind
	DryRun    bool
	Scanned   int
	Renewed   int
	Recovered int // pending subscriptions whose retry succeeded
	Pending   int
	Suspended int
	Expired   int
	InGrace   int
	Skipped   int
	Failed    int
	Errors    []error
	Due       []uuid.UUID // dry runs only
	StartedAt time.Time
	Duration  time.Duration
}
