package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	"github.com/wellhost/wellhost-server-go/internal/config"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/metrics"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

// AuthorizationRequest is the start of a PKCE flow. Verifier must be kept by
// the browser and presented again at exchange time.
type AuthorizationRequest struct {
	URL      string
	Verifier string
}

// AirbnbService runs the Airbnb authorization-code flow with PKCE and owns
// the provider side of refresh and revocation.
type AirbnbService struct {
	oauth      *oauth2.Config
	revokeURL  string
	accounts   repository.ExternalAccountRepository
	cipher     *util.TokenCipher
	events     EventPublisher
	httpClient *http.Client
	now        func() time.Time

	persistAttempts int
	persistBackoff  time.Duration
}

func NewAirbnbService(
	cfg *config.Config,
	accounts repository.ExternalAccountRepository,
	cipher *util.TokenCipher,
	events EventPublisher,
) *AirbnbService {
	return &AirbnbService{
		oauth: &oauth2.Config{
			ClientID:     cfg.AirbnbClientID,
			ClientSecret: cfg.AirbnbClientSecret,
			RedirectURL:  cfg.AirbnbRedirect(),
			Scopes:       cfg.AirbnbScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AirbnbAuthorizeURL,
				TokenURL:  cfg.AirbnbTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		revokeURL:       cfg.AirbnbRevokeURL,
		accounts:        accounts,
		cipher:          cipher,
		events:          events,
		httpClient:      &http.Client{Timeout: config.ProviderHTTPTimeout},
		now:             time.Now,
		persistAttempts: config.PersistAttempts,
		persistBackoff:  config.PersistBackoff,
	}
}

func (s *AirbnbService) Configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != ""
}

// BeginAuthorization generates a fresh verifier and the provider URL carrying
// its S256 challenge.
func (s *AirbnbService) BeginAuthorization() (*AuthorizationRequest, error) {
	if !s.Configured() {
		return nil, apperrors.ConfigurationMissing("Airbnb OAuth")
	}

	verifier := oauth2.GenerateVerifier()
	return &AuthorizationRequest{
		URL:      s.oauth.AuthCodeURL("", oauth2.S256ChallengeOption(verifier)),
		Verifier: verifier,
	}, nil
}

// Connect exchanges code for tokens and stores them as the user's active
// Airbnb account. If storing fails after retries the fresh grant is revoked
// at the provider so no orphaned credential outlives the failure.
func (s *AirbnbService) Connect(ctx context.Context, userID, code, verifier string) (*model.ExternalAccount, error) {
	if !s.Configured() {
		return nil, apperrors.ConfigurationMissing("Airbnb OAuth")
	}
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.MissingRequired("code")
	}
	if verifier == "" {
		return nil, apperrors.BadRequest("Authorization session expired, start again")
	}

	token, err := s.exchange(ctx, code, verifier)
	if err != nil {
		metrics.OAuthExchangesTotal.WithLabelValues(string(model.PlatformAirbnb), metrics.ResultFailure).Inc()
		return nil, err
	}

	params, err := s.accountParams(userID, token)
	if err != nil {
		return nil, apperrors.Internal("Failed to prepare credentials").WithCause(err)
	}

	account, err := s.persist(ctx, params)
	if err != nil {
		metrics.OAuthExchangesTotal.WithLabelValues(string(model.PlatformAirbnb), metrics.ResultFailure).Inc()
		log.Error().Err(err).Str("userId", userID).Msg("failed to persist airbnb credentials")
		s.revoke(ctx, userID, token)
		return nil, apperrors.Persistence(err)
	}

	metrics.OAuthExchangesTotal.WithLabelValues(string(model.PlatformAirbnb), metrics.ResultSuccess).Inc()
	audit.Log(ctx, audit.Event{
		Type:      audit.EventAccountConnect,
		UserID:    userID,
		AccountID: account.ID,
		Platform:  string(model.PlatformAirbnb),
		Details:   map[string]interface{}{"scopes": strings.Join(account.Scopes, " ")},
	})
	publishChannelStatus(ctx, s.events, userID, model.PlatformAirbnb, true)

	return account, nil
}

// RefreshToken trades a refresh token for a new token pair. If the provider
// omits a new refresh token the old one is carried over.
func (s *AirbnbService) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if !s.Configured() {
		return nil, apperrors.ConfigurationMissing("Airbnb OAuth")
	}
	if refreshToken == "" {
		return nil, errors.New("no refresh token stored")
	}

	src := s.oauth.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *AirbnbService) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := s.oauth.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			log.Warn().Int("status", status).Msg("airbnb token exchange rejected")
			return nil, apperrors.TokenExchangeFailed(string(retrieveErr.Body)).WithCause(err)
		}
		log.Error().Err(err).Msg("airbnb token exchange failed")
		return nil, apperrors.Upstream("Airbnb", err)
	}
	return token, nil
}

func (s *AirbnbService) accountParams(userID string, token *oauth2.Token) (model.UpsertExternalAccountParams, error) {
	accessToken, err := s.cipher.Seal(token.AccessToken)
	if err != nil {
		return model.UpsertExternalAccountParams{}, err
	}
	refreshToken, err := s.cipher.Seal(token.RefreshToken)
	if err != nil {
		return model.UpsertExternalAccountParams{}, err
	}

	now := s.now()
	scope, _ := token.Extra("scope").(string)

	return model.UpsertExternalAccountParams{
		UserID:            userID,
		Platform:          model.PlatformAirbnb,
		ExternalAccountID: providerUserID(token),
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		TokenExpiresAt:    tokenExpiry(token, now),
		Scopes:            strings.Fields(scope),
		Metadata: map[string]any{
			"token_type":   token.TokenType,
			"connected_at": now.UTC().Format(time.RFC3339),
		},
	}, nil
}

func (s *AirbnbService) persist(ctx context.Context, params model.UpsertExternalAccountParams) (*model.ExternalAccount, error) {
	var lastErr error
	for attempt := 1; attempt <= s.persistAttempts; attempt++ {
		account, err := s.accounts.Upsert(ctx, params)
		if err == nil {
			return account, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("userId", params.UserID).Msg("external account upsert failed")

		if attempt == s.persistAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w (context: %v)", lastErr, ctx.Err())
		case <-time.After(s.persistBackoff * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// revoke is best effort: a failure is logged, never returned.
func (s *AirbnbService) revoke(ctx context.Context, userID string, token *oauth2.Token) {
	if s.revokeURL == "" {
		log.Warn().Str("userId", userID).Msg("no revocation endpoint configured, provider grant left active")
		return
	}

	value, hint := token.RefreshToken, "refresh_token"
	if value == "" {
		value, hint = token.AccessToken, "access_token"
	}

	form := url.Values{
		"token":           {value},
		"token_type_hint": {hint},
		"client_id":       {s.oauth.ClientID},
		"client_secret":   {s.oauth.ClientSecret},
	}

	// The request context may already be cancelled by the failure we are cleaning up after.
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ProviderHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(revokeCtx, http.MethodPost, s.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error().Err(err).Msg("failed to build revoke request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("airbnb grant revocation failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Str("userId", userID).Msg("airbnb grant revocation rejected")
		return
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventGrantRevoked,
		UserID:   userID,
		Platform: string(model.PlatformAirbnb),
	})
}

func (s *AirbnbService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// tokenExpiry is now + expires_in. Tokens without a lifetime never expire.
func tokenExpiry(token *oauth2.Token, now time.Time) *time.Time {
	if token.ExpiresIn > 0 {
		expiry := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		return &expiry
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		return &expiry
	}
	return nil
}

func providerUserID(token *oauth2.Token) *string {
	var id string
	switch v := token.Extra("user_id").(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		id = v.String()
	}
	if id == "" {
		return nil
	}
	return &id
}
