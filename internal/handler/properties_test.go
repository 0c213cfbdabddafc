package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/middleware"
	"github.com/wellhost/wellhost-server-go/internal/model"
)

type mockReservationReader struct {
	listPropertiesFunc   func(ctx context.Context, userID string) ([]model.Property, error)
	listReservationsFunc func(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error)
}

func (m *mockReservationReader) ListProperties(ctx context.Context, userID string) ([]model.Property, error) {
	return m.listPropertiesFunc(ctx, userID)
}

func (m *mockReservationReader) ListReservations(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error) {
	return m.listReservationsFunc(ctx, userID, filter)
}

const testPropertyID = "9b2f3c1e-4d5a-4b6c-8d7e-0f1a2b3c4d5e"

func identityRouter(h *PropertiesHandler, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), &model.Identity{ID: userID})))
		})
	})
	r.Mount("/api/properties", h.Routes())
	return r
}

func TestPropertiesHandler_ListProperties(t *testing.T) {
	reader := &mockReservationReader{
		listPropertiesFunc: func(ctx context.Context, userID string) ([]model.Property, error) {
			assert.Equal(t, "user-1", userID)
			return nil, nil
		},
	}

	rec := httptest.NewRecorder()
	identityRouter(NewPropertiesHandler(reader), "user-1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/properties", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"properties":[]}`, rec.Body.String())
}

func TestPropertiesHandler_ListReservations(t *testing.T) {
	t.Run("passes the filter through", func(t *testing.T) {
		var got model.ReservationFilter
		reader := &mockReservationReader{
			listReservationsFunc: func(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error) {
				got = filter
				return &model.ReservationPage{Limit: filter.Limit, Offset: filter.Offset}, nil
			},
		}

		rec := httptest.NewRecorder()
		identityRouter(NewPropertiesHandler(reader), "user-1").ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/properties/"+testPropertyID+"/reservations?status=cancelled&limit=1000&offset=-5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testPropertyID, got.PropertyID)
		assert.Equal(t, model.ReservationStatus("cancelled"), got.Status)
		assert.Equal(t, 200, got.Limit)
		assert.Equal(t, 0, got.Offset)
		assert.Contains(t, rec.Body.String(), `"reservations":[]`)
	})

	t.Run("foreign property is forbidden", func(t *testing.T) {
		reader := &mockReservationReader{
			listReservationsFunc: func(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error) {
				return nil, apperrors.Unauthorized("Property belongs to another user")
			},
		}

		rec := httptest.NewRecorder()
		identityRouter(NewPropertiesHandler(reader), "user-2").ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/properties/"+testPropertyID+"/reservations", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed property id is not found", func(t *testing.T) {
		reader := &mockReservationReader{
			listReservationsFunc: func(ctx context.Context, userID string, filter model.ReservationFilter) (*model.ReservationPage, error) {
				t.Fatal("service should not be called")
				return nil, nil
			},
		}

		rec := httptest.NewRecorder()
		identityRouter(NewPropertiesHandler(reader), "user-1").ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/properties/p-1/reservations", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
