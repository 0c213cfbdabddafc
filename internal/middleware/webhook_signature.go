package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	"github.com/wellhost/wellhost-server-go/internal/metrics"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

const ChannexSignatureHeader = "X-Channex-Signature"

// WebhookSignatureMiddleware checks the hex HMAC-SHA256 of the raw body.
// Without a secret it lets everything through; config validation refuses
// that in production.
type WebhookSignatureMiddleware struct {
	secret string
	header string
}

func NewWebhookSignatureMiddleware(secret string) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{secret: secret, header: ChannexSignatureHeader}
}

func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("webhook signature verification bypassed: CHANNEX_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(m.header)
		if signature == "" {
			m.reject(w, r, "missing_signature", "Missing signature")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: failed to read body")
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !util.SignatureMatches(m.secret, body, signature) {
			m.reject(w, r, "invalid_signature", "Invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *WebhookSignatureMiddleware) reject(w http.ResponseWriter, r *http.Request, reason, message string) {
	log.Warn().Str("reason", reason).Msg("webhook signature middleware: rejected delivery")
	metrics.WebhookEventsTotal.WithLabelValues("unverified", metrics.ResultRejected).Inc()
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventWebhookRejected,
		Details: map[string]interface{}{"reason": reason},
	})
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": message,
	})
}
