package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAccountConnect      EventType = "account_connect"
	EventAccountDisconnect   EventType = "account_disconnect"
	EventTokenRefresh        EventType = "token_refresh"
	EventTokenRefreshFailure EventType = "token_refresh_failure"
	EventGrantRevoked        EventType = "grant_revoked"
	EventSessionIssue        EventType = "session_issue"
	EventSessionClear        EventType = "session_clear"
	EventLegacyTokenAccepted EventType = "legacy_token_accepted"
	EventAuthFailure         EventType = "auth_failure"
	EventOwnershipDenied     EventType = "ownership_denied"
	EventWebhookRejected     EventType = "webhook_rejected"
	EventRateLimitExceed     EventType = "rate_limit_exceeded"
	EventCSRFFailure         EventType = "csrf_failure"
)

// Event is a security-relevant action. Details must never carry token values.
type Event struct {
	Type      EventType
	UserID    string
	AccountID string
	Platform  string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.AccountID != "" {
		logger = logger.With().Str("account_id", event.AccountID).Logger()
	}
	if event.Platform != "" {
		logger = logger.With().Str("platform", event.Platform).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// getClientIP relies on chi's RealIP middleware having rewritten RemoteAddr
// from X-Forwarded-For / X-Real-IP.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
