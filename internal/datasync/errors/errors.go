package errors

import "errors"

var (
	// ErrLockHeld is returned when a live (non-stale) sync lock exists.
	ErrLockHeld = errors.New("sync lock is held by another process")

	ErrNotLockOwner = errors.New("sync lock is owned by another holder")

	ErrSyncFailed = errors.New("sync failed")

	ErrFetchFailed = errors.New("failed to fetch open data")
)
