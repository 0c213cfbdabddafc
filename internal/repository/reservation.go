package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wellhost/wellhost-server-go/internal/model"
)

type ReservationRepository interface {
	Upsert(ctx context.Context, params model.UpsertReservationParams) (*model.Reservation, error)
	List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
	Count(ctx context.Context, filter model.ReservationFilter) (int, error)
}

type reservationRepo struct {
	db *sqlx.DB
}

func NewReservationRepository(db *sqlx.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

// Upsert keys on (property, Channex booking id). Cancellation is just another
// status, so a late cancel for an unseen booking still lands.
func (r *reservationRepo) Upsert(ctx context.Context, params model.UpsertReservationParams) (*model.Reservation, error) {
	payload := params.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var reservation model.Reservation
	err := r.db.GetContext(ctx, &reservation, `
		INSERT INTO reservations (
			property_id, channex_booking_id, status, guest_name, guest_email,
			arrival_date, departure_date, total_amount, currency, ota_name, raw_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (property_id, channex_booking_id) DO UPDATE SET
			status = EXCLUDED.status,
			guest_name = COALESCE(EXCLUDED.guest_name, reservations.guest_name),
			guest_email = COALESCE(EXCLUDED.guest_email, reservations.guest_email),
			arrival_date = EXCLUDED.arrival_date,
			departure_date = EXCLUDED.departure_date,
			total_amount = COALESCE(EXCLUDED.total_amount, reservations.total_amount),
			currency = COALESCE(EXCLUDED.currency, reservations.currency),
			ota_name = COALESCE(EXCLUDED.ota_name, reservations.ota_name),
			raw_payload = EXCLUDED.raw_payload,
			updated_at = NOW()
		RETURNING *
	`, params.PropertyID, params.ChannexBookingID, params.Status, params.GuestName, params.GuestEmail,
		params.ArrivalDate, params.DepartureDate, params.TotalAmount, params.Currency, params.OTAName, payload)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepo) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	reservations := []model.Reservation{}
	err := r.db.SelectContext(ctx, &reservations, `
		SELECT * FROM reservations
		WHERE property_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY arrival_date ASC, created_at ASC
		LIMIT $3 OFFSET $4
	`, filter.PropertyID, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *reservationRepo) Count(ctx context.Context, filter model.ReservationFilter) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM reservations
		WHERE property_id = $1 AND ($2 = '' OR status = $2)
	`, filter.PropertyID, filter.Status)
	return count, err
}
