package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/database"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/sse"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type channexInventoryRange struct {
	RoomTypeID string          `json:"room_type_id"`
	RatePlanID string          `json:"rate_plan_id"`
	DateFrom   string          `json:"date_from"`
	DateTo     string          `json:"date_to"`
	Values     json.RawMessage `json:"values"`
}

type channexInventoryPayload struct {
	channexInventoryRange
	Changes []channexInventoryRange `json:"changes"`
}

// InventoryService records rate and availability pushes from the channel
// manager. All ranges of one delivery are written in one transaction.
type InventoryService struct {
	tx         TxRunner
	properties repository.PropertyRepository
	inventory  repository.InventoryRepository
	cache      PageCache
	events     EventPublisher
}

func NewInventoryService(
	tx TxRunner,
	properties repository.PropertyRepository,
	inventory repository.InventoryRepository,
	cache PageCache,
	events EventPublisher,
) *InventoryService {
	return &InventoryService{
		tx:         tx,
		properties: properties,
		inventory:  inventory,
		cache:      cache,
		events:     events,
	}
}

func (s *InventoryService) Handle(ctx context.Context, event *model.ChannelEvent) error {
	kind, ok := inventoryKindFor(event.EventType)
	if !ok {
		return fmt.Errorf("unexpected inventory event %q", event.EventType)
	}

	property, err := resolveChannelProperty(ctx, s.properties, event)
	if err != nil || property == nil {
		return err
	}

	params, err := inventoryParams(property.ID, kind, event.Payload)
	if err != nil {
		return err
	}

	changes := make([]*model.InventoryChange, 0, len(params))
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.inventory.WithTx(tx)
		for _, p := range params {
			change, err := repo.Create(ctx, p)
			if err != nil {
				return fmt.Errorf("record inventory change: %w", err)
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateReservationPages(ctx, s.cache, property.ID)
	publish(ctx, s.events, property.UserID, sse.EventInventory, map[string]any{
		"propertyId": property.ID,
		"kind":       kind,
		"changes":    changes,
	})

	log.Info().
		Str("propertyId", property.ID).
		Str("kind", string(kind)).
		Int("ranges", len(changes)).
		Msg("inventory change recorded")
	return nil
}

func inventoryKindFor(eventType string) (model.InventoryChangeKind, bool) {
	switch eventType {
	case model.EventRateChanged:
		return model.InventoryChangeRate, true
	case model.EventAvailabilityChanged:
		return model.InventoryChangeAvailability, true
	}
	return "", false
}

// inventoryParams accepts either a single range at the top of the payload
// or a "changes" list of ranges.
func inventoryParams(propertyID string, kind model.InventoryChangeKind, payload json.RawMessage) ([]model.CreateInventoryChangeParams, error) {
	if len(payload) == 0 {
		return []model.CreateInventoryChangeParams{{PropertyID: propertyID, Kind: kind}}, nil
	}

	var body channexInventoryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperrors.ValidationError("Invalid inventory payload")
	}

	ranges := body.Changes
	if len(ranges) == 0 {
		ranges = []channexInventoryRange{body.channexInventoryRange}
	}

	params := make([]model.CreateInventoryChangeParams, 0, len(ranges))
	for i, r := range ranges {
		from, err := optionalDate(r.DateFrom)
		if err != nil {
			return nil, apperrors.ValidationError(fmt.Sprintf("changes[%d].date_from must be YYYY-MM-DD", i))
		}
		to, err := optionalDate(r.DateTo)
		if err != nil {
			return nil, apperrors.ValidationError(fmt.Sprintf("changes[%d].date_to must be YYYY-MM-DD", i))
		}
		if from != nil && to != nil && to.Before(*from) {
			return nil, apperrors.ValidationError(fmt.Sprintf("changes[%d].date_to is before date_from", i))
		}

		raw := []byte(r.Values)
		if len(body.Changes) == 0 {
			raw = []byte(payload)
		}

		params = append(params, model.CreateInventoryChangeParams{
			PropertyID: propertyID,
			Kind:       kind,
			RoomTypeID: optional(r.RoomTypeID),
			RatePlanID: optional(r.RatePlanID),
			DateFrom:   from,
			DateTo:     to,
			Payload:    raw,
		})
	}
	return params, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(channexDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
