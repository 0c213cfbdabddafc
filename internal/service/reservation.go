package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/model"
	redisclient "github.com/wellhost/wellhost-server-go/internal/redis"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/sse"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

const channexDateLayout = "2006-01-02"

// PageCache holds rendered listing pages grouped under an owner key.
// Set must drop the write when key was invalidated after generation was read.
type PageCache interface {
	Generation(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key, field string, dest any) (bool, error)
	Set(ctx context.Context, key, field string, generation int64, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type channexCustomer struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Mail    string `json:"mail"`
}

type channexBooking struct {
	BookingID     string          `json:"booking_id"`
	ArrivalDate   string          `json:"arrival_date"`
	DepartureDate string          `json:"departure_date"`
	Amount        json.Number     `json:"amount"`
	Currency      string          `json:"currency"`
	OTAName       string          `json:"ota_name"`
	Customer      channexCustomer `json:"customer"`
}

// ReservationService reconciles bookings pushed by the channel manager and
// serves the host's reservation listings.
type ReservationService struct {
	properties   repository.PropertyRepository
	reservations repository.ReservationRepository
	cache        PageCache
	events       EventPublisher
	cacheTTL     time.Duration
}

func NewReservationService(
	properties repository.PropertyRepository,
	reservations repository.ReservationRepository,
	cache PageCache,
	events EventPublisher,
	cacheTTL time.Duration,
) *ReservationService {
	return &ReservationService{
		properties:   properties,
		reservations: reservations,
		cache:        cache,
		events:       events,
		cacheTTL:     cacheTTL,
	}
}

// Handle applies a reservation_new, reservation_updated or
// reservation_cancelled event. Events for properties nobody has mapped are
// skipped.
func (s *ReservationService) Handle(ctx context.Context, event *model.ChannelEvent) error {
	status, ok := reservationStatusFor(event.EventType)
	if !ok {
		return fmt.Errorf("unexpected reservation event %q", event.EventType)
	}

	property, err := resolveChannelProperty(ctx, s.properties, event)
	if err != nil || property == nil {
		return err
	}

	params, err := reservationParams(property.ID, status, event.Payload)
	if err != nil {
		return err
	}

	reservation, err := s.reservations.Upsert(ctx, params)
	if err != nil {
		return fmt.Errorf("upsert reservation: %w", err)
	}

	invalidateReservationPages(ctx, s.cache, property.ID)
	publish(ctx, s.events, property.UserID, sse.EventReservation, reservation)

	log.Info().
		Str("propertyId", property.ID).
		Str("bookingId", reservation.ChannexBookingID).
		Str("status", string(reservation.Status)).
		Msg("reservation reconciled")
	return nil
}

func (s *ReservationService) ListProperties(ctx context.Context, userID string) ([]model.Property, error) {
	properties, err := s.properties.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load properties").WithCause(err)
	}
	return properties, nil
}

// ListReservations returns one page of a property's reservations. Only the
// property's owner may read it.
func (s *ReservationService) ListReservations(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error) {
	if filter.Status != "" && !validReservationStatus(filter.Status) {
		return nil, apperrors.ValidationError("status must be one of new, modified, cancelled")
	}

	property, err := s.properties.FindByID(ctx, filter.PropertyID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load property").WithCause(err)
	}
	if property == nil {
		return nil, apperrors.NotFound("Property")
	}
	if property.UserID != userID {
		return nil, apperrors.Unauthorized("Property belongs to another user")
	}

	cacheKey := redisclient.ReservationCacheKey(property.ID)
	field := fmt.Sprintf("%s:%d:%d", filter.Status, filter.Limit, filter.Offset)

	// The generation is read before the database so a page loaded across an
	// invalidation is never stored.
	var page model.ReservationPage
	cacheable := false
	var generation int64
	if s.cache != nil {
		generation, err = s.cache.Generation(ctx, cacheKey)
		if err != nil {
			log.Warn().Err(err).Str("propertyId", property.ID).Msg("reservation cache read failed")
		} else {
			cacheable = true
			hit, err := s.cache.Get(ctx, cacheKey, field, &page)
			if err != nil {
				log.Warn().Err(err).Str("propertyId", property.ID).Msg("reservation cache read failed")
			} else if hit {
				return &page, nil
			}
		}
	}

	reservations, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("Failed to load reservations").WithCause(err)
	}
	total, err := s.reservations.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal("Failed to count reservations").WithCause(err)
	}

	page = model.ReservationPage{
		Reservations: reservations,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}

	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, field, generation, page, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("propertyId", property.ID).Msg("reservation cache write failed")
		}
	}
	return &page, nil
}

func reservationStatusFor(eventType string) (model.ReservationStatus, bool) {
	switch eventType {
	case model.EventReservationNew:
		return model.ReservationStatusNew, true
	case model.EventReservationUpdated:
		return model.ReservationStatusModified, true
	case model.EventReservationCancelled:
		return model.ReservationStatusCancelled, true
	}
	return "", false
}

var reservationStatuses = []string{
	string(model.ReservationStatusNew),
	string(model.ReservationStatusModified),
	string(model.ReservationStatusCancelled),
}

func validReservationStatus(status model.ReservationStatus) bool {
	return util.IsValidEnum(string(status), reservationStatuses)
}

// resolveChannelProperty maps the event's channel property id to a local
// property. A nil property with a nil error means the event is skipped.
func resolveChannelProperty(ctx context.Context, properties repository.PropertyRepository, event *model.ChannelEvent) (*model.Property, error) {
	if event.PropertyID == "" {
		return nil, apperrors.MissingRequired("property_id")
	}

	property, err := properties.FindByChannexID(ctx, event.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("find property: %w", err)
	}
	if property == nil {
		log.Warn().
			Str("channexPropertyId", event.PropertyID).
			Str("eventType", event.EventType).
			Msg("channel event for unmapped property, skipping")
	}
	return property, nil
}

func reservationParams(propertyID string, status model.ReservationStatus, payload json.RawMessage) (model.UpsertReservationParams, error) {
	if len(payload) == 0 {
		return model.UpsertReservationParams{}, apperrors.MissingRequired("payload")
	}

	var booking channexBooking
	if err := json.Unmarshal(payload, &booking); err != nil {
		return model.UpsertReservationParams{}, apperrors.ValidationError("Invalid booking payload")
	}
	if booking.BookingID == "" {
		return model.UpsertReservationParams{}, apperrors.MissingRequired("payload.booking_id")
	}

	arrival, err := time.Parse(channexDateLayout, booking.ArrivalDate)
	if err != nil {
		return model.UpsertReservationParams{}, apperrors.ValidationError("payload.arrival_date must be YYYY-MM-DD")
	}
	departure, err := time.Parse(channexDateLayout, booking.DepartureDate)
	if err != nil {
		return model.UpsertReservationParams{}, apperrors.ValidationError("payload.departure_date must be YYYY-MM-DD")
	}
	if departure.Before(arrival) {
		return model.UpsertReservationParams{}, apperrors.ValidationError("payload.departure_date is before arrival_date")
	}

	return model.UpsertReservationParams{
		PropertyID:       propertyID,
		ChannexBookingID: booking.BookingID,
		Status:           status,
		GuestName:        optional(strings.TrimSpace(booking.Customer.Name + " " + booking.Customer.Surname)),
		GuestEmail:       optional(booking.Customer.Mail),
		ArrivalDate:      arrival,
		DepartureDate:    departure,
		Currency:         optional(booking.Currency),
		OTAName:          optional(booking.OTAName),
		TotalAmount:      optional(booking.Amount.String()),
		RawPayload:       []byte(payload),
	}, nil
}

func invalidateReservationPages(ctx context.Context, cache PageCache, propertyID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, redisclient.ReservationCacheKey(propertyID)); err != nil {
		log.Warn().Err(err).Str("propertyId", propertyID).Msg("failed to invalidate reservation cache")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
