package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// setIfGenerationScript writes a page only while the owner's generation is
// still the one the caller read before loading it.
var setIfGenerationScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// PageCache stores JSON pages in a hash per owner key, so invalidating an
// owner drops every cached page at once. Each invalidation also bumps the
// owner's generation, and Set drops a page loaded under an older one.
type PageCache struct {
	client *redis.Client
}

func NewPageCache(client *redis.Client) *PageCache {
	return &PageCache{client: client}
}

func generationKey(key string) string {
	return key + ":gen"
}

// Generation returns the owner's current generation. Read it before loading
// the data that will be passed to Set.
func (c *PageCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *PageCache) Get(ctx context.Context, key, field string, dest any) (bool, error) {
	data, err := c.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value unless the owner was invalidated after generation was
// read. A skipped write is not an error.
func (c *PageCache) Set(ctx context.Context, key, field string, generation int64, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return setIfGenerationScript.Run(ctx, c.client,
		[]string{key, generationKey(key)},
		generation, field, data, ttl.Milliseconds(),
	).Err()
}

func (c *PageCache) Invalidate(ctx context.Context, key string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(key))
	pipe.Del(ctx, key)
	_, err := pipe.Exec(ctx)
	return err
}
