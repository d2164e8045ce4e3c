package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"askme/internal/platform/redis"
)

// RedisCache implements DisclosureCache on Redis. SET with TTL gives exact
// window expiry without a sweep; GETDEL makes retrieval one-time atomically
// across server replicas.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(requestID string) string {
	return "askme:disclosure:" + requestID
}

func (c *RedisCache) Put(ctx context.Context, requestID, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(requestID), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache disclosure: %w", err)
	}
	return nil
}

func (c *RedisCache) Take(ctx context.Context, requestID string) (string, bool, error) {
	value, err := c.client.GetDel(ctx, cacheKey(requestID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take disclosure: %w", err)
	}
	return value, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, requestID string) error {
	if err := c.client.Del(ctx, cacheKey(requestID)).Err(); err != nil {
		return fmt.Errorf("delete disclosure: %w", err)
	}
	return nil
}
