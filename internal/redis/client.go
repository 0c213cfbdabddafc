package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// UserEventChannel is the pub/sub channel carrying dashboard events for one host.
func UserEventChannel(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

func AccountLockKey(accountID string) string {
	return fmt.Sprintf("lock:external_account:%s", accountID)
}

func WebhookClaimKey(provider, deliveryID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, deliveryID)
}

func ReservationCacheKey(propertyID string) string {
	return fmt.Sprintf("cache:reservations:%s", propertyID)
}
