package catalog

import "errors"

var (
	ErrDuplicatePlan  = errors.New("duplicate plan id")
	ErrInvalidCatalog = errors.New("invalid plan catalog document")
)
