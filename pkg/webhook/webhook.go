package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/backoff"
	"github.com/dmitrymomot/billingcore/pkg/breaker"
	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Sender posts JSON events to HTTP endpoints with retries.
type Sender struct {
	client     *http.Client
	breaker    *breaker.Breaker
	backoff    backoff.Strategy
	maxRetries int
	timeout    time.Duration
	secret     string
	logger     *slog.Logger
	now        func() time.Time
}

// NewSender creates a sender with 3 retries and exponential backoff.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff: backoff.Exponential{
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
			JitterFactor:    0.1,
		},
		maxRetries: 3,
		timeout:    10 * time.Second,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("webhook"))
	return s
}

// Send marshals event and POSTs it to endpoint. 4xx responses other than
// 408, 425 and 429 are permanent and end the retries.
func (s *Sender) Send(ctx context.Context, endpoint string, event any) error {
	if err := validateURL(endpoint); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff.NextInterval(attempt)):
			}
		}

		lastErr = s.attempt(ctx, endpoint, payload)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || breaker.IsCircuitOpen(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		s.logger.WarnContext(ctx, "webhook attempt failed",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt+1),
			logger.Error(lastErr),
		)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *Sender) attempt(ctx context.Context, endpoint string, payload []byte) error {
	do := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.post(ctx, endpoint, payload)
	}
	if s.breaker != nil {
		return s.breaker.Call(ctx, do)
	}
	return do(ctx)
}

func (s *Sender) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "billingcore-webhook/1.0")

	if s.secret != "" {
		sig, err := Sign(s.secret, payload, s.now())
		if err != nil {
			return err
		}
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Join(ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.ReplaceAll(strings.TrimSpace(string(body)), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	err = fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, msg)
	if isPermanent(resp.StatusCode) {
		return errors.Join(ErrPermanentFailure, err)
	}
	return errors.Join(ErrTemporaryFailure, err)
}

func isPermanent(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

func validateURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
