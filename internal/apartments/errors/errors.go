package errors

import "errors"

var (
	ErrNotFound = errors.New("apartment not found")

	ErrInvalidID = errors.New("invalid apartment ID format")

	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrMissingRegistryNumber marks open-data records that cannot be upserted.
	ErrMissingRegistryNumber = errors.New("record has no registry number")
)
