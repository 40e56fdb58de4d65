package subscription

import "errors"

var (
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrDuplicateSubscription = errors.New("tenant already has a live subscription")
	ErrInvalidState          = errors.New("invalid subscription state")
	ErrConcurrentUpdate      = errors.New("subscription was modified concurrently")

	ErrPlanNotFound        = errors.New("subscription plan not found")
	ErrPlanUnavailable     = errors.New("subscription plan unavailable")
	ErrInvalidPlan         = errors.New("invalid subscription plan configuration")
	ErrUsageExceedsNewPlan = errors.New("current usage exceeds the limits of the new plan")
	ErrPlanChangeFailed    = errors.New("plan change failed")
	ErrInvalidChangeMode   = errors.New("invalid plan change mode")
	ErrExtendNotAllowed    = errors.New("subscription cannot be extended yet")

	ErrPaymentDeclined  = errors.New("payment declined")
	ErrPaymentGateway   = errors.New("payment gateway error")
	ErrRetriesExhausted = errors.New("payment retries exhausted")
)
