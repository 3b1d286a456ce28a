package repository

import (
	"fmt"
	"time"

	reservationserrors "apartur/internal/reservations/errors"
	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// reservationDocument stores apartment_id as an ObjectID so it can be
// joined against Apartments; the API model carries it as hex.
type reservationDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ApartmentID primitive.ObjectID `bson:"apartment_id"`
	UserID      string             `bson:"user_id,omitempty"`
	GuestName   string             `bson:"guest_name"`
	GuestPhone  string             `bson:"guest_phone"`
	GuestEmail  string             `bson:"guest_email,omitempty"`
	Entry       time.Time          `bson:"entry"`
	Exit        time.Time          `bson:"exit"`
	Guests      int                `bson:"guests"`
	Price       float64            `bson:"price"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toDocument(r *model.Reservation) (*reservationDocument, error) {
	aptOID, err := primitive.ObjectIDFromHex(r.ApartmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: apartment %s", reservationserrors.ErrInvalidID, r.ApartmentID)
	}

	doc := &reservationDocument{
		ApartmentID: aptOID,
		UserID:      r.UserID,
		GuestName:   r.GuestName,
		GuestPhone:  r.GuestPhone,
		GuestEmail:  r.GuestEmail,
		Entry:       r.Entry,
		Exit:        r.Exit,
		Guests:      r.Guests,
		Price:       r.Price,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ID != "" {
		oid, err := primitive.ObjectIDFromHex(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, r.ID)
		}
		doc.ID = oid
	}
	return doc, nil
}

func (d *reservationDocument) toModel() *model.Reservation {
	return &model.Reservation{
		ID:          d.ID.Hex(),
		ApartmentID: d.ApartmentID.Hex(),
		UserID:      d.UserID,
		GuestName:   d.GuestName,
		GuestPhone:  d.GuestPhone,
		GuestEmail:  d.GuestEmail,
		Entry:       d.Entry.UTC(),
		Exit:        d.Exit.UTC(),
		Guests:      d.Guests,
		Price:       d.Price,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
