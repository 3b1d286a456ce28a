package model

import "time"

type Apartment struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RegistryNumber string    `json:"registry_number" bson:"registry_number" validate:"required,max=64"`
	Name           string    `json:"name" bson:"name" validate:"required,max=200"`
	Category       string    `json:"category,omitempty" bson:"category,omitempty" validate:"omitempty,max=100"`
	Province       string    `json:"province" bson:"province" validate:"required,max=100"`
	Municipality   string    `json:"municipality,omitempty" bson:"municipality,omitempty" validate:"omitempty,max=150"`
	Locality       string    `json:"locality,omitempty" bson:"locality,omitempty" validate:"omitempty,max=150"`
	Address        string    `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=300"`
	PostalCode     string    `json:"postal_code,omitempty" bson:"postal_code,omitempty" validate:"omitempty,numeric,len=5"`
	Phone          string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,max=40"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email,max=254"`
	Website        string    `json:"website,omitempty" bson:"website,omitempty" validate:"omitempty,url,max=500"`
	Capacity       int       `json:"capacity" bson:"capacity" validate:"gte=0,max=10000"`
	Units          int       `json:"units" bson:"units" validate:"gte=0,max=10000"`
	Latitude       *float64  `json:"latitude,omitempty" bson:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude      *float64  `json:"longitude,omitempty" bson:"longitude,omitempty" validate:"omitempty,longitude"`
	PricePerNight  *float64  `json:"price_per_night,omitempty" bson:"price_per_night,omitempty" validate:"omitempty,gte=0"`
	Active         bool      `json:"active" bson:"active"`
	SyncedAt       time.Time `json:"synced_at,omitempty" bson:"synced_at,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

func (a *Apartment) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

type ApartmentFilter struct {
	Province     string
	Municipality string
	MinCapacity  int
	Query        string
	Limit        int
	Offset       int64
}

type ApartmentDistance struct {
	Apartment
	DistanceKm float64 `json:"distance_km"`
}

type PriceUpdate struct {
	PricePerNight float64 `json:"price_per_night" validate:"gte=0,lte=100000"`
}
