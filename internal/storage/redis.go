package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/config"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTimeout = 2 * time.Second

// NewRedisClient connects to the cache. The cache is a disposable
// accelerator, so callers may treat a connection failure as degradation
// rather than a fatal error.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultCacheTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
