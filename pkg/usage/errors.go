package usage

import "errors"

var (
	// ErrFailedToCountUsage wraps store and gauge failures.
	ErrFailedToCountUsage = errors.New("failed to count usage")

	// ErrUsageLimitExceeded is returned by Enforce for denied requests.
	ErrUsageLimitExceeded = errors.New("usage limit exceeded")
)
