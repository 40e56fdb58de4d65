package webhook

import "errors"

var (
	ErrDeliveryFailed      = errors.New("webhook delivery failed")
	ErrPermanentFailure    = errors.New("permanent webhook failure")
	ErrTemporaryFailure    = errors.New("temporary webhook failure")
	ErrInvalidURL          = errors.New("invalid webhook URL")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMissingSecret       = errors.New("webhook signing secret is required")
	ErrTimestampOutOfRange = errors.New("webhook timestamp outside tolerance")
)

// IsRetryable reports whether a delivery error may succeed on a later attempt.
// Used as the breaker failure filter so that rejected payloads do not open it.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanentFailure) &&
		!errors.Is(err, ErrInvalidURL) && !errors.Is(err, ErrInvalidPayload)
}
