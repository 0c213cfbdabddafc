package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/service"
)

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, body []byte) (service.DispatchOutcome, error)
}

// ChannexHandler receives channel manager deliveries. Signature checking
// happens in WebhookSignatureMiddleware before this runs.
type ChannexHandler struct {
	dispatcher WebhookDispatcher
}

func NewChannexHandler(dispatcher WebhookDispatcher) *ChannexHandler {
	return &ChannexHandler{dispatcher: dispatcher}
}

func (h *ChannexHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.BadRequest("Failed to read request body"))
		return
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Debug().Str("outcome", string(outcome)).Msg("channex webhook acknowledged")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
