package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	"github.com/wellhost/wellhost-server-go/internal/config"
	"github.com/wellhost/wellhost-server-go/internal/httputil"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/service"
)

// ManagedAccessCookie carries the managed-auth access token set by the
// dashboard's auth client.
const ManagedAccessCookie = "sb-access-token"

type contextKey string

const IdentityContextKey contextKey = "identity"

func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// CredentialsFromRequest collects every token the request may authenticate with.
func CredentialsFromRequest(r *http.Request) service.SessionCredentials {
	var creds service.SessionCredentials

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		creds.BearerToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := r.Cookie(ManagedAccessCookie); err == nil {
		creds.ManagedToken = cookie.Value
	}
	if cookie, err := r.Cookie(config.SessionCookieName); err == nil {
		creds.SessionToken = cookie.Value
	}
	return creds
}

type IdentityMiddleware struct {
	resolver service.IdentityResolver
}

func NewIdentityMiddleware(resolver service.IdentityResolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// Handler rejects requests that resolve to no identity with 401.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := CredentialsFromRequest(r)
		identity, err := m.resolver.Resolve(r.Context(), creds)
		if err != nil {
			if !creds.Empty() {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventAuthFailure,
					Details: map[string]interface{}{"path": r.URL.Path},
				})
			}
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// Optional attaches the identity when one resolves and otherwise lets the
// request through, for browser routes that report failure by redirect.
func (m *IdentityMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.resolver.Resolve(r.Context(), CredentialsFromRequest(r))
		if err == nil && identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func SetCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
