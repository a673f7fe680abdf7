package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docaihq/docai/pkg/log"
)

// RedisCache backs the cache port with a shared redis instance. Used
// when a cache URI is configured; failures degrade to misses.
type RedisCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisCache(uri string) (*RedisCache, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URI: %w", err)
	}
	return &RedisCache{
		rdb:    redis.NewClient(opts),
		logger: log.WithModule("cache"),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
