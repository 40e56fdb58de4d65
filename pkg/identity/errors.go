package identity

import "errors"

var (
	// ErrTenantNotFound is returned when the identity service does not know the tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantUnavailable is returned when the tenant could not be resolved
	// from the identity service nor from cache.
	ErrTenantUnavailable = errors.New("tenant profile unavailable")

	// ErrUnexpectedResponse is returned for malformed identity service responses.
	ErrUnexpectedResponse = errors.New("unexpected identity service response")
)
