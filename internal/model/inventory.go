package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// InventoryChange is an append-only record of a rate or availability push
// received from the channel manager.
type InventoryChange struct {
	ID         string              `db:"id" json:"id"`
	PropertyID string              `db:"property_id" json:"propertyId"`
	Kind       InventoryChangeKind `db:"kind" json:"kind"`
	RoomTypeID *string             `db:"room_type_id" json:"roomTypeId,omitempty"`
	RatePlanID *string             `db:"rate_plan_id" json:"ratePlanId,omitempty"`
	DateFrom   *time.Time          `db:"date_from" json:"dateFrom,omitempty"`
	DateTo     *time.Time          `db:"date_to" json:"dateTo,omitempty"`
	Payload    types.JSONText      `db:"payload" json:"payload"`
	ReceivedAt time.Time           `db:"received_at" json:"receivedAt"`
}

type CreateInventoryChangeParams struct {
	PropertyID string
	Kind       InventoryChangeKind
	RoomTypeID *string
	RatePlanID *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Payload    types.JSONText
}
