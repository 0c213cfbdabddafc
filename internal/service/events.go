package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/sse"
)

// EventPublisher pushes dashboard events to a host's open event streams.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// publish is fire and forget: a host with no open dashboard is not an error.
func publish(ctx context.Context, events EventPublisher, userID, eventType string, data any) {
	if events == nil || userID == "" {
		return
	}

	event, err := sse.NewEvent(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to encode dashboard event")
		return
	}
	if err := events.Publish(ctx, userID, event); err != nil {
		log.Warn().Err(err).Str("userId", userID).Str("type", eventType).Msg("failed to publish dashboard event")
	}
}

func publishChannelStatus(ctx context.Context, events EventPublisher, userID string, platform model.Platform, connected bool) {
	publish(ctx, events, userID, sse.EventChannelStatus, map[string]any{
		"platform":  platform,
		"connected": connected,
	})
}
