package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/httputil"
	redisclient "github.com/wellhost/wellhost-server-go/internal/redis"
)

// Limiter counts hits on key within a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (redisclient.RateLimitResult, error)
}

// RateLimitMiddleware limits requests per resolved identity, or per client
// IP for routes that run before authentication.
type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	prefix  string
	byIP    bool
}

// NewIdentityRateLimitMiddleware keys on the resolved identity. A limiter
// outage lets requests through.
func NewIdentityRateLimitMiddleware(limiter Limiter, limit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, limit: limit, window: window, prefix: "user"}
}

// NewIPRateLimitMiddleware keys on the client IP. A limiter outage rejects
// requests, since these routes guard credential issuance.
func NewIPRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, prefix string) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, limit: limit, window: window, prefix: "ip:" + prefix, byIP: true}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := m.subject(r)
		if subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.Allow(r.Context(), m.prefix+":"+subject, m.limit, m.window)
		if err != nil {
			if !m.byIP {
				log.Warn().Err(err).Str("subject", subject).Msg("rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			log.Error().Err(err).Str("subject", subject).Msg("rate limit check failed, rejecting request")
			httputil.WriteError(w, apperrors.Internal("Rate limiter unavailable").WithCause(err))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"bucket": m.prefix, "subject": subject},
			})
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) subject(r *http.Request) string {
	if m.byIP {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	if identity := GetIdentity(r.Context()); identity != nil {
		return identity.ID
	}
	return ""
}
