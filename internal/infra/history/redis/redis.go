// Package redis provides a capped shared history journal backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/remedy/internal/core/domain"
)

const defaultMaxEntries = 1000

// Config holds Redis connection configuration.
type Config struct {
	URL        string `yaml:"url"`
	Key        string `yaml:"key"`
	MaxEntries int64  `yaml:"max_entries"`
}

// Store journals executions as JSON in a capped Redis list, newest first.
type Store struct {
	rdb *redis.Client
	key string
	max int64
}

// New creates the store and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "remedy:executions"
	}
	max := cfg.MaxEntries
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &Store{rdb: rdb, key: key, max: max}, nil
}

// Record implements history.Store.
func (s *Store) Record(ctx context.Context, exec domain.RecoveryExecution) error {
	payload, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to journal execution: %w", err)
	}
	return nil
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.RecoveryExecution, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := s.rdb.LRange(ctx, s.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	out := make([]domain.RecoveryExecution, 0, len(raw))
	for _, item := range raw {
		var exec domain.RecoveryExecution
		if err := json.Unmarshal([]byte(item), &exec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal entry: %w", err)
		}
		out = append(out, exec)
	}
	return out, nil
}

// Close implements history.Store.
func (s *Store) Close() error {
	return s.rdb.Close()
}
