package model

import (
	"encoding/json"
	"time"
)

// Channex event tags routed by the webhook dispatcher.
const (
	EventReservationNew       = "reservation_new"
	EventReservationUpdated   = "reservation_updated"
	EventReservationCancelled = "reservation_cancelled"
	EventRateChanged          = "rate_changed"
	EventAvailabilityChanged  = "availability_changed"
)

// ChannelEvent is an inbound webhook delivery from the channel manager.
type ChannelEvent struct {
	ID         string          `json:"event_id,omitempty"`
	EventType  string          `json:"event_type"`
	PropertyID string          `json:"property_id,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
