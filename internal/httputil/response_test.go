package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeConfigurationMissing, http.StatusInternalServerError},
		{apperrors.ErrCodeBadRequest, http.StatusBadRequest},
		{apperrors.ErrCodeMissingRequired, http.StatusBadRequest},
		{apperrors.ErrCodeTokenExchangeFailed, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthenticated, http.StatusUnauthorized},
		{apperrors.ErrCodeInvalidToken, http.StatusUnauthorized},
		{apperrors.ErrCodeUnauthorized, http.StatusForbidden},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeConflict, http.StatusConflict},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeUpstream, http.StatusBadGateway},
		{apperrors.ErrCodeRefreshFailed, http.StatusInternalServerError},
		{apperrors.ErrCodePersistence, http.StatusInternalServerError},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes AppError with mapped status", func(t *testing.T) {
		rec := httptest.NewRecorder()

		WriteError(rec, apperrors.TokenExchangeFailed(`{"error":"invalid_grant"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "TOKEN_EXCHANGE_FAILED", body["code"])
		details := body["details"].(map[string]any)
		assert.Equal(t, `{"error":"invalid_grant"}`, details["providerError"])
	})

	t.Run("hides unknown errors behind internal error", func(t *testing.T) {
		rec := httptest.NewRecorder()

		WriteError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	})
}
