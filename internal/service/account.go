package service

import (
	"context"
	"time"

	"github.com/wellhost/wellhost-server-go/internal/audit"
	apperrors "github.com/wellhost/wellhost-server-go/internal/errors"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/repository"
)

type AccountService struct {
	accounts repository.ExternalAccountRepository
	events   EventPublisher
	now      func() time.Time
}

func NewAccountService(accounts repository.ExternalAccountRepository, events EventPublisher) *AccountService {
	return &AccountService{
		accounts: accounts,
		events:   events,
		now:      time.Now,
	}
}

// Disconnect deactivates the user's account on platform. Disconnecting an
// account that is already inactive (or never existed) succeeds.
func (s *AccountService) Disconnect(ctx context.Context, userID string, platform model.Platform) error {
	n, err := s.accounts.Deactivate(ctx, userID, platform)
	if err != nil {
		return apperrors.Persistence(err)
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventAccountDisconnect,
		UserID:   userID,
		Platform: string(platform),
		Details:  map[string]interface{}{"deactivated": n},
	})
	if n > 0 {
		publishChannelStatus(ctx, s.events, userID, platform, false)
	}
	return nil
}

func (s *AccountService) Status(ctx context.Context, userID string, platform model.Platform) (*model.ConnectionStatus, error) {
	account, err := s.accounts.FindActive(ctx, userID, platform)
	if err != nil {
		return nil, apperrors.Internal("Failed to load channel account").WithCause(err)
	}

	status := &model.ConnectionStatus{Platform: platform}
	if account == nil {
		return status, nil
	}

	connectedAt := account.CreatedAt
	status.Connected = true
	status.ExternalAccountID = account.ExternalAccountID
	status.Scopes = account.Scopes
	status.ExpiresAt = account.TokenExpiresAt
	status.Expired = account.IsExpired(s.now())
	status.LastSyncedAt = account.LastSyncedAt
	status.ConnectedAt = &connectedAt
	return status, nil
}
