package checks

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresCheck probes a PostgreSQL server with a ping on a pooled
// connection.
type PostgresCheck struct {
	db *sql.DB
}

// NewPostgresCheck creates a checker for the given DSN. The connection is
// opened lazily; the first check establishes it.
func NewPostgresCheck(dsn string) (*PostgresCheck, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	return &PostgresCheck{db: db}, nil
}

// CheckHealth implements domain.HealthChecker.
func (c *PostgresCheck) CheckHealth(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *PostgresCheck) Close() error {
	return c.db.Close()
}
