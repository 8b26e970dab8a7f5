package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares resolved cloud ids between controllers.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects lazily to the redis server at addr.
func NewRedisCache(addr string, db int, prefix string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, siteURL string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+siteURL).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, siteURL, cloudID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+siteURL, cloudID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
