// Package cache wraps the Redis client used for rate counters and job locks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maplenou/maplenou-api/internal/config"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// KeyPrefix namespaces every key written by the service.
const KeyPrefix = "maplenou:"

// Cache is a thin wrapper over a Redis client.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewCache connects to Redis and checks the connection.
func NewCache(cfg *config.RedisConfig, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("Connected to Redis")

	return &Cache{client: client, log: log}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, log *logger.Logger) *Cache {
	return &Cache{client: client, log: log}
}

// Get returns the value at key, or "" when absent.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value at key with the given expiration.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.client.Set(ctx, KeyPrefix+key, value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Del deletes keys.
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = KeyPrefix + k
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// IncrWindow increments the counter at key and starts its expiry on first use.
// It returns the new count and the time left in the window.
func (c *Cache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := KeyPrefix + key

	count, err := c.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set expiry of %s: %w", key, err)
		}
		return count, window, nil
	}

	left, err := c.client.PTTL(ctx, full).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read expiry of %s: %w", key, err)
	}
	if left < 0 {
		// counter lost its expiry; restart the window
		_ = c.client.Expire(ctx, full, window).Err()
		left = window
	}
	return count, left, nil
}

// AcquireLock takes key for ttl if nobody holds it. It reports whether the lock was taken.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, KeyPrefix+"lock:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock drops key.
func (c *Cache) ReleaseLock(ctx context.Context, key string) error {
	return c.Del(ctx, "lock:"+key)
}

// Health pings Redis.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
