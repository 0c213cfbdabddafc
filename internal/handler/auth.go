package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	"github.com/wellhost/wellhost-server-go/internal/config"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/middleware"
	"github.com/wellhost/wellhost-server-go/internal/model"
)

type SessionIssuer interface {
	Enabled() bool
	TTL() time.Duration
	Issue(identity *model.Identity) (string, time.Time, error)
}

// AuthHandler trades a verified session for the self-issued auth_token
// cookie and reports who the caller is.
type AuthHandler struct {
	sessions     SessionIssuer
	isProduction bool
}

func NewAuthHandler(sessions SessionIssuer, isProduction bool) *AuthHandler {
	return &AuthHandler{sessions: sessions, isProduction: isProduction}
}

func (h *AuthHandler) Routes(identity *middleware.IdentityMiddleware, issueLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(identity.Optional).Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(identity.Handler)
		r.With(issueLimit).Post("/session", h.IssueSession)
		r.Get("/me", h.Me)
	})

	return r
}

// IssueSession sets auth_token for the resolved identity. Unsigned legacy
// tokens cannot be upgraded this way.
func (h *AuthHandler) IssueSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}
	if identity.Source == model.IdentitySourceLegacy {
		writeError(w, apperrors.Unauthorized("Sign in again to obtain a session"))
		return
	}
	if !h.sessions.Enabled() {
		writeError(w, apperrors.ConfigurationMissing("SESSION_SECRET"))
		return
	}

	token, expiresAt, err := h.sessions.Issue(identity)
	if err != nil {
		writeError(w, apperrors.Internal("Failed to issue session").WithCause(err))
		return
	}

	middleware.SetCookie(w, config.SessionCookieName, token, h.sessions.TTL(), h.isProduction)
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionIssue,
		UserID:  identity.ID,
		Details: map[string]interface{}{"source": identity.Source},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user":      identity,
		"expiresAt": formatTime(&expiresAt),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identity})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearCookie(w, config.SessionCookieName, h.isProduction)
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionClear, UserID: identity.ID})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
