// Package memory provides a bounded in-memory history store.
package memory

import (
	"context"
	"sync"

	"github.com/vietddude/remedy/internal/core/domain"
)

// DefaultCapacity bounds the stored records when no capacity is given.
const DefaultCapacity = 1000

// Store keeps the most recent executions in memory, newest first.
type Store struct {
	mu    sync.RWMutex
	execs []domain.RecoveryExecution
	cap   int
}

// New creates a store holding up to capacity records.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{cap: capacity}
}

// Record implements history.Store.
func (s *Store) Record(_ context.Context, exec domain.RecoveryExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append([]domain.RecoveryExecution{exec}, s.execs...)
	if len(s.execs) > s.cap {
		s.execs = s.execs[:s.cap]
	}
	return nil
}

// Recent implements history.Store.
func (s *Store) Recent(_ context.Context, limit int) ([]domain.RecoveryExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.execs) {
		limit = len(s.execs)
	}
	out := make([]domain.RecoveryExecution, limit)
	copy(out, s.execs[:limit])
	return out, nil
}

// Close implements history.Store.
func (s *Store) Close() error { return nil }
