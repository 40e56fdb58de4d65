package notify

import "errors"

var (
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrInvalidConfig     = errors.New("invalid notifier configuration")
	ErrInvalidMessage    = errors.New("invalid email message")
	ErrNoRecipient       = errors.New("tenant has no billing email")
	ErrUnknownNotice     = errors.New("unknown notice kind")
)
