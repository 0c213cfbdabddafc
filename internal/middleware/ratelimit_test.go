package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wellhost/wellhost-server-go/internal/model"
	redisclient "github.com/wellhost/wellhost-server-go/internal/redis"
)

// countingLimiter is a fixed-window Limiter kept in memory.
type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	keys []string
	err  error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{hits: make(map[string]int)}
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (redisclient.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return redisclient.RateLimitResult{}, l.err
	}
	resetAt := time.Now().Add(window)
	if l.hits[key] >= limit {
		return redisclient.RateLimitResult{Allowed: false, ResetAt: resetAt}, nil
	}
	l.hits[key]++
	return redisclient.RateLimitResult{Allowed: true, Remaining: limit - l.hits[key], ResetAt: resetAt}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityRateLimitMiddleware(t *testing.T) {
	identityCtx := WithIdentity(context.Background(), &model.Identity{ID: "user-1"})

	t.Run("passes requests without identity", func(t *testing.T) {
		limiter := newCountingLimiter()
		handler := NewIdentityRateLimitMiddleware(limiter, 1, time.Minute).Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/test", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, limiter.keys)
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		limiter := newCountingLimiter()
		handler := NewIdentityRateLimitMiddleware(limiter, 100, time.Minute).Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/test", nil).WithContext(identityCtx))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		assert.Equal(t, []string{"user:user-1"}, limiter.keys)
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		handler := NewIdentityRateLimitMiddleware(newCountingLimiter(), 2, time.Minute).Handler(okHandler())

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/test", nil).WithContext(identityCtx))
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/test", nil).WithContext(identityCtx))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("limiter outage lets requests through", func(t *testing.T) {
		limiter := newCountingLimiter()
		limiter.err = errors.New("redis down")
		handler := NewIdentityRateLimitMiddleware(limiter, 1, time.Minute).Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/test", nil).WithContext(identityCtx))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIPRateLimitMiddleware(t *testing.T) {
	t.Run("keys on the client address", func(t *testing.T) {
		limiter := newCountingLimiter()
		handler := NewIPRateLimitMiddleware(limiter, 1, time.Minute, "session").Handler(okHandler())

		req := httptest.NewRequest("POST", "/api/auth/session", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ip:session:203.0.113.7"}, limiter.keys)

		req = httptest.NewRequest("POST", "/api/auth/session", nil)
		req.RemoteAddr = "203.0.113.7:60000"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("limiter outage rejects requests", func(t *testing.T) {
		limiter := newCountingLimiter()
		limiter.err = errors.New("redis down")
		handler := NewIPRateLimitMiddleware(limiter, 1, time.Minute, "session").Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/session", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
