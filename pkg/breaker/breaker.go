package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current mode of a circuit breaker.
type State int

const (
	// Closed lets every call through and counts consecutive failures.
	Closed State = iota
	// Open rejects calls with ErrCircuitOpen until the cooldown elapses.
	Open
	// HalfOpen lets a single trial call through to probe recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Listener observes state changes. It is invoked outside the breaker lock.
type Listener func(name string, from, to State)

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithListener registers a state change observer.
func WithListener(l Listener) Option {
	return func(b *Breaker) {
		if l != nil {
			b.listeners = append(b.listeners, l)
		}
	}
}

// WithFailureFilter decides which errors returned by the protected operation
// count against the dependency. Errors rejected by the filter are passed through
// and recorded as a healthy response. By default every error counts.
func WithFailureFilter(fn func(error) bool) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.isFailure = fn
		}
	}
}

// Breaker protects calls to a single external dependency. Safe for concurrent use.
type Breaker struct {
	name      string
	cfg       Config
	now       func() time.Time
	listeners []Listener
	isFailure func(error) bool

	mu          sync.Mutex
	state       State
	failures    int
	successes   int  // consecutive successes while half-open
	probing     bool // a trial call is in flight
	lastFailure time.Time
	openedAt    time.Time
}

// New creates a closed breaker for the named dependency.
// Zero config values fall back to package defaults.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		isFailure: func(error) bool { return true },
		state:     Closed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.name }

// Config returns the effective configuration.
func (b *Breaker) Config() Config { return b.cfg }

// Call runs op under the breaker with the configured call timeout.
// Returns ErrCircuitOpen without invoking op while open, and ErrDependencyTimeout
// when op does not return in time. Timeouts count as failures, whether the
// configured timeout or a deadline on ctx expired. Cancellation of ctx does not.
func (b *Breaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute is the value-returning form of Breaker.Call.
func Execute[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := b.acquire(); err != nil {
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := op(callCtx)
		done <- result{val: val, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}

	switch {
	case res.err == nil:
		b.recordSuccess()
		return res.val, nil

	case errors.Is(ctx.Err(), context.Canceled):
		// The caller gave up on its own; say nothing about dependency health.
		b.release()
		return zero, res.err

	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		b.recordFailure()
		return zero, errors.Join(ErrDependencyTimeout, res.err)

	case b.isFailure(res.err):
		b.recordFailure()
		return res.val, res.err

	default:
		b.recordSuccess()
		return res.val, res.err
	}
}

// Allow reports whether a call would currently be let through, without reserving a trial slot.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		return b.cooledDown()
	default:
		return !b.probing
	}
}

// State returns the current state, reporting an open breaker whose cooldown
// elapsed as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.cooledDown() {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.failures = 0
	b.successes = 0
	b.probing = false
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
	b.mu.Unlock()

	b.notify(from, Closed)
}

// Stats is a point-in-time snapshot of a breaker for monitoring.
type Stats struct {
	Name             string        `json:"name"`
	State            string        `json:"state"`
	Failures         int           `json:"consecutive_failures"`
	LastFailure      time.Time     `json:"last_failure,omitzero"`
	OpenedAt         time.Time     `json:"opened_at,omitzero"`
	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// Stats returns the current statistics of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == Open && b.cooledDown() {
		state = HalfOpen
	}

	return Stats{
		Name:             b.name,
		State:            state.String(),
		Failures:         b.failures,
		LastFailure:      b.lastFailure,
		OpenedAt:         b.openedAt,
		FailureThreshold: b.cfg.FailureThreshold,
		Cooldown:         b.cfg.Cooldown,
	}
}

// acquire admits a call or rejects it with ErrCircuitOpen.
// Only one trial call is admitted while half-open.
func (b *Breaker) acquire() error {
	b.mu.Lock()
	from := b.state

	switch b.state {
	case Open:
		if !b.cooledDown() {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = HalfOpen
		b.successes = 0
		b.probing = true

	case HalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	from := b.state

	switch b.state {
	case Closed:
		b.failures = 0

	case HalfOpen:
		b.probing = false
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	from := b.state
	now := b.now()
	b.lastFailure = now

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = now
		}

	case HalfOpen:
		// Trial call failed, back to open for another full cooldown
		b.state = Open
		b.openedAt = now
		b.failures = b.cfg.FailureThreshold
		b.successes = 0
		b.probing = false

	case Open:
		// A call admitted before the trip failed late; lastFailure restarts the cooldown.
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// release frees the trial slot without recording an outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
	}
}

// cooledDown reports whether the cooldown has passed since the last failure.
// It must be called with b.mu held.
func (b *Breaker) cooledDown() bool {
	return !b.now().Before(b.lastFailure.Add(b.cfg.Cooldown))
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	for _, l := range b.listeners {
		l(b.name, from, to)
	}
}
