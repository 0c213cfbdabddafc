package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore records which webhook deliveries have been taken for processing.
type ClaimStore struct {
	client *redis.Client
}

func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

// Claim returns false if key was already claimed within ttl.
func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// Release drops a claim so the provider's retry is processed again.
func (s *ClaimStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
