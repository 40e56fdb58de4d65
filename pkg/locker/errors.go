package locker

import "errors"

var (
	ErrLockNotAcquired = errors.New("lock not acquired before deadline")
	ErrLockFailed      = errors.New("lock backend failure")
)
