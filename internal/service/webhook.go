package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/metrics"
	"github.com/wellhost/wellhost-server-go/internal/model"
	redisclient "github.com/wellhost/wellhost-server-go/internal/redis"
)

const channexProvider = "channex"

// ChannelEventHandler applies one kind of channel manager event.
type ChannelEventHandler interface {
	Handle(ctx context.Context, event *model.ChannelEvent) error
}

type ChannelEventHandlerFunc func(ctx context.Context, event *model.ChannelEvent) error

func (f ChannelEventHandlerFunc) Handle(ctx context.Context, event *model.ChannelEvent) error {
	return f(ctx, event)
}

// ClaimStore marks deliveries as taken so provider retries of a processed
// event are acknowledged without being applied twice.
type ClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type DispatchOutcome string

const (
	DispatchProcessed DispatchOutcome = "processed"
	DispatchDuplicate DispatchOutcome = "duplicate"
	DispatchIgnored   DispatchOutcome = "ignored"
	DispatchRejected  DispatchOutcome = "rejected"
)

// Metric labels for deliveries that carry no usable event type.
const (
	malformedEventLabel = "malformed"
	untaggedEventLabel  = "untagged"
)

// WebhookDispatcher routes verified channel manager deliveries to the
// handler registered for their exact event type.
type WebhookDispatcher struct {
	claims   ClaimStore
	claimTTL time.Duration

	mu       sync.RWMutex
	handlers map[string]ChannelEventHandler
}

func NewWebhookDispatcher(claims ClaimStore, claimTTL time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		claims:   claims,
		claimTTL: claimTTL,
		handlers: make(map[string]ChannelEventHandler),
	}
}

func (d *WebhookDispatcher) Register(eventType string, handler ChannelEventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = handler
}

func (d *WebhookDispatcher) handlerFor(eventType string) ChannelEventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[eventType]
}

// Dispatch parses body and runs its handler. Deliveries that are not a JSON
// object, carry no event type or name an unknown one are acknowledged with
// no side effect. A payload its handler rejects as invalid is acknowledged
// and keeps its claim, since a retry cannot succeed. Any other handler
// failure releases the claim and is returned so the provider retries.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, body []byte) (DispatchOutcome, error) {
	var event model.ChannelEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn().Err(err).Int("bytes", len(body)).Msg("ignoring malformed channel event")
		metrics.WebhookEventsTotal.WithLabelValues(malformedEventLabel, metrics.ResultIgnored).Inc()
		return DispatchIgnored, nil
	}
	event.EventType = strings.TrimSpace(event.EventType)
	if event.EventType == "" {
		log.Warn().Str("eventId", event.ID).Msg("ignoring channel event without event_type")
		metrics.WebhookEventsTotal.WithLabelValues(untaggedEventLabel, metrics.ResultIgnored).Inc()
		return DispatchIgnored, nil
	}

	logger := log.With().
		Str("eventType", event.EventType).
		Str("eventId", event.ID).
		Str("propertyId", event.PropertyID).
		Logger()

	handler := d.handlerFor(event.EventType)
	if handler == nil {
		logger.Info().Msg("ignoring unhandled channel event")
		metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultIgnored).Inc()
		return DispatchIgnored, nil
	}

	claimKey := redisclient.WebhookClaimKey(channexProvider, deliveryID(&event, body))
	if d.claims != nil {
		claimed, err := d.claims.Claim(ctx, claimKey, d.claimTTL)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultFailure).Inc()
			return "", apperrors.Internal("Failed to record webhook delivery").WithCause(err)
		}
		if !claimed {
			logger.Info().Msg("duplicate channel event delivery")
			metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultDuplicate).Inc()
			return DispatchDuplicate, nil
		}
	}

	if err := handler.Handle(ctx, &event); err != nil {
		if isInvalidPayload(err) {
			logger.Warn().Err(err).Msg("rejected invalid channel event payload")
			metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultRejected).Inc()
			return DispatchRejected, nil
		}

		logger.Error().Err(err).Msg("channel event handler failed")
		metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultFailure).Inc()
		if d.claims != nil {
			if releaseErr := d.claims.Release(context.WithoutCancel(ctx), claimKey); releaseErr != nil {
				logger.Error().Err(releaseErr).Msg("failed to release webhook claim")
			}
		}
		if appErr, ok := apperrors.AsAppError(err); ok {
			return "", appErr
		}
		return "", apperrors.Internal(fmt.Sprintf("Failed to process %s event", event.EventType)).WithCause(err)
	}

	logger.Info().Msg("channel event processed")
	metrics.WebhookEventsTotal.WithLabelValues(event.EventType, metrics.ResultSuccess).Inc()
	return DispatchProcessed, nil
}

func isInvalidPayload(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeBadRequest, apperrors.ErrCodeValidation, apperrors.ErrCodeMissingRequired:
		return true
	}
	return false
}

// deliveryID is the provider's event id, or a digest of the raw body when
// the delivery carries none.
func deliveryID(event *model.ChannelEvent, body []byte) string {
	if id := strings.TrimSpace(event.ID); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
