package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/metrics"
	"github.com/wellhost/wellhost-server-go/internal/model"
	redisclient "github.com/wellhost/wellhost-server-go/internal/redis"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

// TokenRefresher trades a refresh token for a new token pair at a provider.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type AccessToken struct {
	Value     string     `json:"accessToken"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// TokenService hands out usable channel access tokens. Refresh is lazy: it
// happens on read once the stored expiry has passed, under a per-account lock,
// and the write only lands if nobody else updated the row first.
type TokenService struct {
	accounts   repository.ExternalAccountRepository
	refreshers map[model.Platform]TokenRefresher
	locker     Locker
	cipher     *util.TokenCipher
	lockTTL    time.Duration
	now        func() time.Time
}

func NewTokenService(
	accounts repository.ExternalAccountRepository,
	refreshers map[model.Platform]TokenRefresher,
	locker Locker,
	cipher *util.TokenCipher,
	lockTTL time.Duration,
) *TokenService {
	return &TokenService{
		accounts:   accounts,
		refreshers: refreshers,
		locker:     locker,
		cipher:     cipher,
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

func (s *TokenService) AccessToken(ctx context.Context, userID string, platform model.Platform) (*AccessToken, error) {
	account, err := s.accounts.FindActive(ctx, userID, platform)
	if err != nil {
		return nil, apperrors.Internal("Failed to load channel account").WithCause(err)
	}
	if account == nil {
		return nil, apperrors.NotFound(string(platform) + " account")
	}

	if !account.IsExpired(s.now()) {
		return s.open(account)
	}
	return s.refresh(ctx, account)
}

func (s *TokenService) refresh(ctx context.Context, stale *model.ExternalAccount) (*AccessToken, error) {
	refresher, ok := s.refreshers[stale.Platform]
	if !ok {
		return nil, apperrors.Internal("No token refresher for " + string(stale.Platform))
	}

	release, err := s.locker.Acquire(ctx, redisclient.AccountLockKey(stale.ID), s.lockTTL)
	if err != nil {
		return nil, apperrors.Internal("Timed out waiting for token refresh").WithCause(err)
	}
	defer release()

	current, err := s.accounts.FindByID(ctx, stale.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load channel account").WithCause(err)
	}
	if current == nil || !current.IsActive {
		return nil, apperrors.NotFound(string(stale.Platform) + " account")
	}
	if !current.IsExpired(s.now()) {
		log.Debug().Str("accountId", current.ID).Msg("token refreshed by concurrent request")
		return s.open(current)
	}

	refreshToken, err := s.cipher.Open(current.RefreshToken)
	if err != nil {
		return nil, apperrors.Internal("Failed to read stored credentials").WithCause(err)
	}

	token, err := refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(string(current.Platform), metrics.ResultFailure).Inc()
		audit.Log(ctx, audit.Event{
			Type:      audit.EventTokenRefreshFailure,
			UserID:    current.UserID,
			AccountID: current.ID,
			Platform:  string(current.Platform),
		})
		log.Warn().Err(err).Str("accountId", current.ID).Msg("token refresh failed")
		return nil, apperrors.RefreshFailed(err)
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	expiresAt := tokenExpiry(token, s.now())

	sealedAccess, err := s.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, apperrors.Internal("Failed to seal credentials").WithCause(err)
	}
	sealedRefresh, err := s.cipher.Seal(token.RefreshToken)
	if err != nil {
		return nil, apperrors.Internal("Failed to seal credentials").WithCause(err)
	}

	updated, err := s.accounts.UpdateTokens(ctx, model.UpdateTokensParams{
		ID:              current.ID,
		ExpectedVersion: current.TokenVersion,
		AccessToken:     sealedAccess,
		RefreshToken:    sealedRefresh,
		TokenExpiresAt:  expiresAt,
	})
	if err != nil {
		log.Error().Err(err).Str("accountId", current.ID).Msg("failed to store refreshed token")
		return nil, apperrors.Persistence(err)
	}
	if !updated {
		// Lost the race despite the lock (its TTL ran out); the stored row wins.
		winner, err := s.accounts.FindByID(ctx, current.ID)
		if err != nil || winner == nil || !winner.IsActive {
			return nil, apperrors.RefreshFailed(err)
		}
		return s.open(winner)
	}

	metrics.TokenRefreshesTotal.WithLabelValues(string(current.Platform), metrics.ResultSuccess).Inc()
	audit.Log(ctx, audit.Event{
		Type:      audit.EventTokenRefresh,
		UserID:    current.UserID,
		AccountID: current.ID,
		Platform:  string(current.Platform),
	})

	return &AccessToken{Value: token.AccessToken, ExpiresAt: expiresAt}, nil
}

func (s *TokenService) open(account *model.ExternalAccount) (*AccessToken, error) {
	value, err := s.cipher.Open(account.AccessToken)
	if err != nil {
		return nil, apperrors.Internal("Failed to read stored credentials").WithCause(err)
	}
	return &AccessToken{Value: value, ExpiresAt: account.TokenExpiresAt}, nil
}
