package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

// Cache wraps Redis with best-effort semantics: every operation logs its
// failure and never propagates it, so the primary read/write path cannot
// be blocked or failed by the accelerator.
type Cache struct {
	client *redis.Client
	log    *slog.Logger
}

// New builds a Cache. A nil client yields a disabled cache where every
// lookup misses and every write is a no-op.
func New(client *redis.Client, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{client: client, log: log}
}

// Get returns the cached payload and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c.client == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn("cache get failed", "key", key, "error", err)
		return "", false
	}
	return val, true
}

// Set stores a payload with a TTL. The returned error is already logged
// and callers are free to ignore it.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Invalidate deletes the given keys. Failures are logged, never fatal:
// a stale entry will age out via its TTL.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "keys", keys, "error", err)
		return err
	}
	return nil
}
