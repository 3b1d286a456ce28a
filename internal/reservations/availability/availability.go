// Package availability decides whether an apartment is free for a stay.
//
// Stays are half-open ranges [entry, exit) on calendar days: a guest leaving
// on the 18th does not block a guest arriving on the 18th.
package availability

import (
	"context"
	"fmt"
	"time"

	reservationserrors "apartur/internal/reservations/errors"
	"apartur/pkg/model"
)

// ActiveReservationReader returns the active reservations of an apartment
// whose stay overlaps [entry, exit). Implementations may return extra
// rows; the checker filters again.
type ActiveReservationReader interface {
	FindActiveOverlapping(ctx context.Context, apartmentID string, entry, exit time.Time) ([]*model.Reservation, error)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share at least one instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Available reports whether no active reservation in snapshot, other than
// excludeID, overlaps [entry, exit).
func Available(snapshot []*model.Reservation, entry, exit time.Time, excludeID string) bool {
	return FirstConflict(snapshot, entry, exit, excludeID) == nil
}

// FirstConflict returns the earliest-starting blocking reservation, or nil.
func FirstConflict(snapshot []*model.Reservation, entry, exit time.Time, excludeID string) *model.Reservation {
	var conflict *model.Reservation
	for _, r := range snapshot {
		if r == nil || !r.IsActive() {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if !Overlaps(r.Entry, r.Exit, entry, exit) {
			continue
		}
		if conflict == nil || r.Entry.Before(conflict.Entry) {
			conflict = r
		}
	}
	return conflict
}

// ValidateRange truncates both dates to the day and rejects zero-night or inverted stays.
func ValidateRange(entry, exit time.Time) (time.Time, time.Time, error) {
	entry, exit = model.TruncateToDay(entry), model.TruncateToDay(exit)
	if !entry.Before(exit) {
		return entry, exit, fmt.Errorf("%w: entry=%s exit=%s",
			reservationserrors.ErrInvalidRange,
			entry.Format(time.DateOnly),
			exit.Format(time.DateOnly),
		)
	}
	return entry, exit, nil
}

// Checker holds no lock. Callers that insert after checking must serialize
// per apartment themselves.
type Checker struct {
	reader ActiveReservationReader
}

func NewChecker(reader ActiveReservationReader) *Checker {
	return &Checker{reader: reader}
}

func (c *Checker) IsAvailable(ctx context.Context, apartmentID string, entry, exit time.Time, excludeReservationID string) (bool, error) {
	conflict, err := c.FindConflict(ctx, apartmentID, entry, exit, excludeReservationID)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

// FindConflict validates the range before reading storage.
func (c *Checker) FindConflict(ctx context.Context, apartmentID string, entry, exit time.Time, excludeReservationID string) (*model.Reservation, error) {
	entry, exit, err := ValidateRange(entry, exit)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.reader.FindActiveOverlapping(ctx, apartmentID, entry, exit)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservations for apartment %s: %w", apartmentID, err)
	}

	sameApartment := snapshot[:0:0]
	for _, r := range snapshot {
		if r != nil && r.ApartmentID == apartmentID {
			sameApartment = append(sameApartment, r)
		}
	}

	return FirstConflict(sameApartment, entry, exit, excludeReservationID), nil
}
