package webhook

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/backoff"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
)

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBreaker routes every attempt through b. While b is open Send fails
// with breaker.ErrCircuitOpen without calling the endpoint.
func WithBreaker(b *breaker.Breaker) Option {
	return func(s *Sender) { s.breaker = b }
}

// WithRetry sets the number of retries after the first attempt and the
// delay strategy between them.
func WithRetry(maxRetries int, strategy backoff.Strategy) Option {
	return func(s *Sender) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if strategy != nil {
			s.backoff = strategy
		}
	}
}

// WithSecret signs every request with HMAC-SHA256.
func WithSecret(secret string) Option {
	return func(s *Sender) { s.secret = secret }
}

// WithTimeout bounds a single attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for failed attempts.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for signatures.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}
