package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrInvalidRange is returned when entry is not strictly before exit.
	ErrInvalidRange = errors.New("entry date must be before exit date")

	ErrTimeConflict = errors.New("reservation dates overlap an existing reservation")

	ErrCapacityExceeded = errors.New("guests exceed apartment capacity")

	ErrInvalidTransition = errors.New("invalid reservation status transition")

	ErrLockHeld = errors.New("apartment is locked by another reservation request")
)
