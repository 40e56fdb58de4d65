package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingcore/pkg/backoff"
)

func TestExponential_NextInterval(t *testing.T) {
	t.Parallel()

	b := backoff.Exponential{
		InitialInterval: time.Hour,
		MaxInterval:     24 * time.Hour,
		Multiplier:      2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: time.Hour},
		{attempt: 2, want: 2 * time.Hour},
		{attempt: 3, want: 4 * time.Hour},
		{attempt: 5, want: 16 * time.Hour},
		{attempt: 6, want: 24 * time.Hour},
		{attempt: 5000, want: 24 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.NextInterval(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponential_Jitter(t *testing.T) {
	t.Parallel()

	b := backoff.Exponential{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Minute,
		Multiplier:      2,
		JitterFactor:    0.5,
	}

	for range 100 {
		d := b.NextInterval(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestExponential_Defaults(t *testing.T) {
	t.Parallel()

	var b backoff.Exponential
	assert.Equal(t, time.Second, b.NextInterval(1))
	assert.Equal(t, 2*time.Second, b.NextInterval(2))
	assert.Equal(t, 30*time.Second, b.NextInterval(10))
}

func TestLinearAndFixed(t *testing.T) {
	t.Parallel()

	l := backoff.Linear{Interval: time.Second, MaxInterval: 3 * time.Second}
	assert.Equal(t, time.Duration(0), l.NextInterval(0))
	assert.Equal(t, 2*time.Second, l.NextInterval(2))
	assert.Equal(t, 3*time.Second, l.NextInterval(7))

	f := backoff.Fixed{Interval: 5 * time.Second}
	assert.Equal(t, time.Duration(0), f.NextInterval(0))
	assert.Equal(t, 5*time.Second, f.NextInterval(1))
	assert.Equal(t, 5*time.Second, f.NextInterval(9))
}
