package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/middleware"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

type ReservationReader interface {
	ListProperties(ctx context.Context, userID string) ([]model.Property, error)
	ListReservations(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error)
}

type PropertiesHandler struct {
	reservations ReservationReader
}

func NewPropertiesHandler(reservations ReservationReader) *PropertiesHandler {
	return &PropertiesHandler{reservations: reservations}
}

func (h *PropertiesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListProperties)
	r.Get("/{propertyId}/reservations", h.ListReservations)

	return r
}

func (h *PropertiesHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	properties, err := h.reservations.ListProperties(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if properties == nil {
		properties = []model.Property{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"properties": properties})
}

// ListReservations supports ?status=, ?limit= and ?offset=.
func (h *PropertiesHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	propertyID := chi.URLParam(r, "propertyId")
	if !util.IsValidUUID(propertyID) {
		writeError(w, apperrors.NotFound("Property"))
		return
	}

	pagination := ParsePagination(r)
	page, err := h.reservations.ListReservations(r.Context(), identity.ID, model.ReservationFilter{
		PropertyID: propertyID,
		Status:     model.ReservationStatus(r.URL.Query().Get("status")),
		Limit:      pagination.Limit,
		Offset:     pagination.Offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Reservations == nil {
		page.Reservations = []model.Reservation{}
	}

	writeJSON(w, http.StatusOK, page)
}
