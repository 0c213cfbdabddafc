package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/sse"
)

func TestAccountService_Disconnect(t *testing.T) {
	ctx := context.Background()
	accounts := newMemAccountRepo()
	account := accounts.add(model.ExternalAccount{UserID: "user-1", Platform: model.PlatformAirbnb, AccessToken: "AT1"})
	events := &recordingPublisher{}
	svc := NewAccountService(accounts, events)

	require.NoError(t, svc.Disconnect(ctx, "user-1", model.PlatformAirbnb))
	stored, _ := accounts.FindByID(ctx, account.ID)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []string{sse.EventChannelStatus}, events.types())

	t.Run("second disconnect is a no-op", func(t *testing.T) {
		require.NoError(t, svc.Disconnect(ctx, "user-1", model.PlatformAirbnb))
		stored, _ := accounts.FindByID(ctx, account.ID)
		assert.False(t, stored.IsActive)
		assert.Len(t, events.types(), 1)
	})

	t.Run("never connected", func(t *testing.T) {
		assert.NoError(t, svc.Disconnect(ctx, "user-2", model.PlatformAirbnb))
	})
}

func TestAccountService_Status(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	accounts := newMemAccountRepo()
	accounts.add(model.ExternalAccount{
		UserID: "user-1", Platform: model.PlatformAirbnb,
		Scopes: []string{"a", "b"}, TokenExpiresAt: &past,
	})
	svc := NewAccountService(accounts, nil)
	svc.now = func() time.Time { return now }

	status, err := svc.Status(ctx, "user-1", model.PlatformAirbnb)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.True(t, status.Expired)
	assert.Equal(t, []string{"a", "b"}, status.Scopes)

	t.Run("not connected", func(t *testing.T) {
		status, err := svc.Status(ctx, "user-2", model.PlatformAirbnb)
		require.NoError(t, err)
		assert.False(t, status.Connected)
		assert.Equal(t, model.PlatformAirbnb, status.Platform)
	})
}
