package model

import "time"

const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusCompleted = "completed"
)

// Reservation is a half-open stay [Entry, Exit) in one apartment.
// Entry and Exit are day-grained, truncated to 00:00 UTC.
type Reservation struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ApartmentID string    `json:"apartment_id" bson:"apartment_id" validate:"required,mongodb"`
	UserID      string    `json:"user_id,omitempty" bson:"user_id,omitempty" validate:"omitempty,max=100"`
	GuestName   string    `json:"guest_name" bson:"guest_name" validate:"required,min=2,max=100"`
	GuestPhone  string    `json:"guest_phone" bson:"guest_phone" validate:"required,es_phone"`
	GuestEmail  string    `json:"guest_email,omitempty" bson:"guest_email,omitempty" validate:"omitempty,email,max=254"`
	Entry       time.Time `json:"entry" bson:"entry" validate:"required"`
	Exit        time.Time `json:"exit" bson:"exit" validate:"required,gtfield=Entry"`
	Guests      int       `json:"guests" bson:"guests" validate:"required,min=1,max=50"`
	Price       float64   `json:"price" bson:"price" validate:"gte=0"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled completed"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

type ReservationUpdate struct {
	GuestName  string     `json:"guest_name,omitempty" validate:"omitempty,min=2,max=100"`
	GuestPhone string     `json:"guest_phone,omitempty" validate:"omitempty,es_phone"`
	GuestEmail string     `json:"guest_email,omitempty" validate:"omitempty,email,max=254"`
	Entry      *time.Time `json:"entry,omitempty"`
	Exit       *time.Time `json:"exit,omitempty"`
	Guests     *int       `json:"guests,omitempty" validate:"omitempty,min=1,max=50"`
	Price      *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Status     string     `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed cancelled completed"`
}

func (r *Reservation) IsActive() bool {
	return IsActiveStatus(r.Status)
}

// Nights counts calendar nights between Entry and Exit.
func (r *Reservation) Nights() int {
	return NightsBetween(r.Entry, r.Exit)
}

func IsActiveStatus(status string) bool {
	return status == ReservationStatusPending || status == ReservationStatusConfirmed
}

func ActiveStatuses() []string {
	return []string{ReservationStatusPending, ReservationStatusConfirmed}
}

var reservationTransitions = map[string][]string{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusCancelled, ReservationStatusCompleted},
}

// CanTransition reports whether a reservation may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TruncateToDay drops the time of day, keeping the calendar date as seen in UTC.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NightsBetween(entry, exit time.Time) int {
	return int(TruncateToDay(exit).Sub(TruncateToDay(entry)).Hours() / 24)
}

// ReservationLock is the per-apartment advisory lock document held while a
// reservation is checked and written.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type AvailabilityResult struct {
	ApartmentID string    `json:"apartment_id"`
	Entry       time.Time `json:"entry"`
	Exit        time.Time `json:"exit"`
	Available   bool      `json:"available"`
}
