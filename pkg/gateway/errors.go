package gateway

import "errors"

var (
	ErrMissingCredentials = errors.New("payment gateway credentials are required")
	ErrUnknownProvider    = errors.New("unknown payment gateway provider")
	ErrInvalidEnvironment = errors.New("invalid payment gateway environment")
	ErrUnmappedPlan       = errors.New("no gateway price configured for plan")
	ErrInvalidPayment     = errors.New("invalid payment method reference")
)
