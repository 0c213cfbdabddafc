package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Reservation struct {
	ID               string            `db:"id" json:"id"`
	PropertyID       string            `db:"property_id" json:"propertyId"`
	ChannexBookingID string            `db:"channex_booking_id" json:"channexBookingId"`
	Status           ReservationStatus `db:"status" json:"status"`
	GuestName        *string           `db:"guest_name" json:"guestName,omitempty"`
	GuestEmail       *string           `db:"guest_email" json:"guestEmail,omitempty"`
	ArrivalDate      time.Time         `db:"arrival_date" json:"arrivalDate"`
	DepartureDate    time.Time         `db:"departure_date" json:"departureDate"`
	TotalAmount      *string           `db:"total_amount" json:"totalAmount,omitempty"`
	Currency         *string           `db:"currency" json:"currency,omitempty"`
	OTAName          *string           `db:"ota_name" json:"otaName,omitempty"`
	RawPayload       types.JSONText    `db:"raw_payload" json:"-"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

type UpsertReservationParams struct {
	PropertyID       string
	ChannexBookingID string
	Status           ReservationStatus
	GuestName        *string
	GuestEmail       *string
	ArrivalDate      time.Time
	DepartureDate    time.Time
	TotalAmount      *string
	Currency         *string
	OTAName          *string
	RawPayload       types.JSONText
}

type ReservationFilter struct {
	PropertyID string
	Status     ReservationStatus
	Limit      int
	Offset     int
}

type ReservationPage struct {
	Reservations []Reservation `json:"reservations"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}
