package checks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCheck probes a Redis server with PING.
type RedisCheck struct {
	rdb *redis.Client
}

// NewRedisCheck creates a checker from a redis:// URL.
func NewRedisCheck(url string) (*RedisCheck, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisCheck{rdb: redis.NewClient(opts)}, nil
}

// CheckHealth implements domain.HealthChecker.
func (c *RedisCheck) CheckHealth(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *RedisCheck) Close() error {
	return c.rdb.Close()
}
