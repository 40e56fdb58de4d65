package audit

import "errors"

var (
	// ErrEntryValidation indicates entry validation failed
	ErrEntryValidation = errors.New("audit entry validation failed")

	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("storage backend is unavailable")
)
