package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wellhost/wellhost-server-go/internal/util"
)

func TestWebhookSignatureMiddleware(t *testing.T) {
	secret := "test-secret"
	body := `{"event_type":"reservation_new"}`
	validSignature := util.HmacSHA256(secret, []byte(body))

	t.Run("passes through when secret is empty", func(t *testing.T) {
		handler := NewWebhookSignatureMiddleware("").Handler(okHandler())

		req := httptest.NewRequest("POST", "/api/channex/webhook", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without signature header", func(t *testing.T) {
		handler := NewWebhookSignatureMiddleware(secret).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("POST", "/api/channex/webhook", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request with invalid signature", func(t *testing.T) {
		handler := NewWebhookSignatureMiddleware(secret).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("POST", "/api/channex/webhook", bytes.NewBufferString(body))
		req.Header.Set(ChannexSignatureHeader, util.HmacSHA256("other-secret", []byte(body)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts a valid signature and keeps the body readable", func(t *testing.T) {
		var seen string
		handler := NewWebhookSignatureMiddleware(secret).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
			w.WriteHeader(http.StatusOK)
		}))

		for _, sig := range []string{validSignature, strings.ToUpper(validSignature), "sha256=" + validSignature} {
			req := httptest.NewRequest("POST", "/api/channex/webhook", bytes.NewBufferString(body))
			req.Header.Set(ChannexSignatureHeader, sig)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, body, seen)
		}
	})

	t.Run("signature over a different body fails", func(t *testing.T) {
		handler := NewWebhookSignatureMiddleware(secret).Handler(okHandler())

		req := httptest.NewRequest("POST", "/api/channex/webhook", bytes.NewBufferString(`{"event_type":"reservation_cancelled"}`))
		req.Header.Set(ChannexSignatureHeader, validSignature)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
