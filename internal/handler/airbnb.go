package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/config"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/middleware"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/service"
)

type AirbnbConnector interface {
	BeginAuthorization() (*service.AuthorizationRequest, error)
	Connect(ctx context.Context, userID, code, verifier string) (*model.ExternalAccount, error)
}

type AccountManager interface {
	Disconnect(ctx context.Context, userID string, platform model.Platform) error
	Status(ctx context.Context, userID string, platform model.Platform) (*model.ConnectionStatus, error)
}

type TokenProvider interface {
	AccessToken(ctx context.Context, userID string, platform model.Platform) (*service.AccessToken, error)
}

// AirbnbHandler serves the host-facing half of the Airbnb connection: the
// PKCE redirect, the code exchange and the account lifecycle.
type AirbnbHandler struct {
	airbnb       AirbnbConnector
	accounts     AccountManager
	tokens       TokenProvider
	dashboardURL string
	isProduction bool
}

func NewAirbnbHandler(
	airbnb AirbnbConnector,
	accounts AccountManager,
	tokens TokenProvider,
	dashboardURL string,
	isProduction bool,
) *AirbnbHandler {
	return &AirbnbHandler{
		airbnb:       airbnb,
		accounts:     accounts,
		tokens:       tokens,
		dashboardURL: dashboardURL,
		isProduction: isProduction,
	}
}

// Routes mounts the Airbnb endpoints. authorize and callback are reached by
// browser navigation, so they resolve identity optionally and report
// failures through the dashboard redirect.
func (h *AirbnbHandler) Routes(identity *middleware.IdentityMiddleware, protected ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/authorize", h.Authorize)
	r.With(identity.Optional).Get("/callback", h.Callback)

	r.Group(func(r chi.Router) {
		r.Use(identity.Handler)
		r.Use(protected...)

		r.Post("/exchange", h.Exchange)
		r.Post("/disconnect", h.Disconnect)
		r.Post("/token", h.Token)
		r.Get("/status", h.Status)
	})

	return r
}

func (h *AirbnbHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	auth, err := h.airbnb.BeginAuthorization()
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetCookie(w, config.VerifierCookieName, auth.Verifier, config.VerifierCookieMaxAge, h.isProduction)
	http.Redirect(w, r, auth.URL, http.StatusFound)
}

type exchangeRequest struct {
	Code string `json:"code"`
}

func (h *AirbnbHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	account, err := h.airbnb.Connect(r.Context(), identity.ID, req.Code, verifierFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.ClearCookie(w, config.VerifierCookieName, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Airbnb account connected",
		"expiresAt": formatTime(account.TokenExpiresAt),
	})
}

// Callback completes the flow when the provider redirects the browser
// straight back to the API.
func (h *AirbnbHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		log.Warn().Str("error", providerErr).Str("description", query.Get("error_description")).Msg("airbnb authorization denied")
		h.redirectToDashboard(w, r, "error", providerErr)
		return
	}

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		h.redirectToDashboard(w, r, "error", redirectReason(apperrors.ErrCodeUnauthenticated))
		return
	}

	if _, err := h.airbnb.Connect(r.Context(), identity.ID, query.Get("code"), verifierFromRequest(r)); err != nil {
		log.Warn().Err(err).Str("userId", identity.ID).Msg("airbnb callback failed")
		h.redirectToDashboard(w, r, "error", redirectReason(apperrors.GetCode(err)))
		return
	}

	middleware.ClearCookie(w, config.VerifierCookieName, h.isProduction)
	h.redirectToDashboard(w, r, "success", "airbnb_connected")
}

func (h *AirbnbHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	if err := h.accounts.Disconnect(r.Context(), identity.ID, model.PlatformAirbnb); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Airbnb account disconnected",
	})
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

// Token returns a usable access token, refreshing it first when expired.
// The token is always the caller's own; a userId naming anyone else is
// refused here as well as by OwnershipMiddleware.
func (h *AirbnbHandler) Token(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.BadRequest("Invalid request body"))
		return
	}
	if req.UserID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}
	if req.UserID != identity.ID {
		writeError(w, apperrors.Unauthorized("Cannot act on another user's resources"))
		return
	}

	token, err := h.tokens.AccessToken(r.Context(), identity.ID, model.PlatformAirbnb)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": token.Value,
		"expiresAt":   formatTime(token.ExpiresAt),
	})
}

func (h *AirbnbHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthenticated())
		return
	}

	status, err := h.accounts.Status(r.Context(), identity.ID, model.PlatformAirbnb)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *AirbnbHandler) redirectToDashboard(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.dashboardURL)
	if err != nil {
		log.Error().Err(err).Str("url", h.dashboardURL).Msg("invalid dashboard url")
		writeError(w, apperrors.Internal("Invalid dashboard URL"))
		return
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func verifierFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(config.VerifierCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func redirectReason(code apperrors.ErrorCode) string {
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	return strings.ToLower(string(code))
}
