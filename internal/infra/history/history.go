// Package history persists finished recovery executions. Three backends are
// provided: an in-memory ring for single-process setups, PostgreSQL for
// durable records and Redis for a capped shared journal.
package history

import (
	"context"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Store is the persistence interface for recovery executions.
type Store interface {
	// Record appends one finished execution.
	Record(ctx context.Context, exec domain.RecoveryExecution) error
	// Recent returns up to limit executions, newest first.
	Recent(ctx context.Context, limit int) ([]domain.RecoveryExecution, error)
	// Close releases backend resources.
	Close() error
}
