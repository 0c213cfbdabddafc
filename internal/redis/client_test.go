package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := NewClient(url)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "events:user:u-1", UserEventChannel("u-1"))
	assert.Equal(t, "lock:external_account:a-1", AccountLockKey("a-1"))
	assert.Equal(t, "webhook:channex:d-1", WebhookClaimKey("channex", "d-1"))
	assert.Equal(t, "cache:reservations:p-1", ReservationCacheKey("p-1"))
}

func TestLocker(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	locker := NewLocker(client.Client)
	key := "lock:test:" + uuid.NewString()

	release, err := locker.Acquire(context.Background(), key, 5*time.Second)
	require.NoError(t, err)

	t.Run("second acquire waits until context expires", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		_, err := locker.Acquire(ctx, key, 5*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("acquire succeeds after release", func(t *testing.T) {
		release()

		again, err := locker.Acquire(context.Background(), key, 5*time.Second)
		require.NoError(t, err)
		again()
	})
}

func TestClaimStore(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewClaimStore(client.Client)
	ctx := context.Background()
	key := WebhookClaimKey("channex", uuid.NewString())

	ok, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, key))
	ok, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPageCache(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewPageCache(client.Client)
	ctx := context.Background()
	key := ReservationCacheKey(uuid.NewString())

	var out []string
	found, err := cache.Get(ctx, key, "page", &out)
	require.NoError(t, err)
	assert.False(t, found)

	gen, err := cache.Generation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, cache.Set(ctx, key, "page", gen, []string{"r1", "r2"}, time.Minute))
	found, err = cache.Get(ctx, key, "page", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"r1", "r2"}, out)

	require.NoError(t, cache.Invalidate(ctx, key))
	found, err = cache.Get(ctx, key, "page", &out)
	require.NoError(t, err)
	assert.False(t, found)

	t.Run("write loaded before an invalidation is dropped", func(t *testing.T) {
		stale, err := cache.Generation(ctx, key)
		require.NoError(t, err)

		require.NoError(t, cache.Invalidate(ctx, key))
		require.NoError(t, cache.Set(ctx, key, "page", stale, []string{"old"}, time.Minute))

		var got []string
		found, err := cache.Get(ctx, key, "page", &got)
		require.NoError(t, err)
		assert.False(t, found)

		current, err := cache.Generation(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, stale+1, current)

		require.NoError(t, cache.Set(ctx, key, "page", current, []string{"new"}, time.Minute))
		found, err = cache.Get(ctx, key, "page", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"new"}, got)
	})
}

func TestRateLimiter(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	limiter := NewRateLimiter(client.Client)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, key, 3, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, key, 3, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.ResetAt.After(time.Now()))
}
