// Package postgres provides a durable history store backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL           string `yaml:"url"`
	MaxConns      int    `yaml:"max_conns"`
	MinConns      int    `yaml:"min_conns"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// Store persists executions in the recovery_executions table.
type Store struct {
	db *sqlx.DB
}

// New opens the connection pool, pings it and applies pending migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	// Goose needs the raw *sql.DB which sqlx.DB wraps.
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db.DB, dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

type executionRow struct {
	ID          string         `db:"id"`
	PlanID      string         `db:"plan_id"`
	Service     string         `db:"service"`
	Strategy    string         `db:"strategy"`
	Cause       string         `db:"cause"`
	Status      string         `db:"status"`
	StartTime   time.Time      `db:"start_time"`
	EndTime     sql.NullTime   `db:"end_time"`
	CurrentStep int            `db:"current_step"`
	TotalSteps  int            `db:"total_steps"`
	Errors      sql.NullString `db:"errors"`
	Metrics     []byte         `db:"metrics"`
	NotifyUsers bool           `db:"notify_users"`
}

// Record implements history.Store.
func (s *Store) Record(ctx context.Context, exec domain.RecoveryExecution) error {
	row := executionRow{
		ID:          exec.ID,
		PlanID:      exec.PlanID,
		Service:     exec.Service,
		Strategy:    string(exec.Strategy),
		Cause:       exec.Cause,
		Status:      string(exec.Status),
		StartTime:   exec.StartTime,
		CurrentStep: exec.CurrentStep,
		TotalSteps:  exec.TotalSteps,
		NotifyUsers: exec.NotifyUsers,
	}
	if !exec.EndTime.IsZero() {
		row.EndTime = sql.NullTime{Time: exec.EndTime, Valid: true}
	}
	if len(exec.Errors) > 0 {
		row.Errors = sql.NullString{String: strings.Join(exec.Errors, "\n"), Valid: true}
	}
	if len(exec.Metrics) > 0 {
		metrics, err := json.Marshal(exec.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		row.Metrics = metrics
	}

	query := `
		INSERT INTO recovery_executions (
			id, plan_id, service, strategy, cause, status,
			start_time, end_time, current_step, total_steps,
			errors, metrics, notify_users
		) VALUES (
			:id, :plan_id, :service, :strategy, :cause, :status,
			:start_time, :end_time, :current_step, :total_steps,
			:errors, :metrics, :notify_users
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			current_step = EXCLUDED.current_step,
			errors = EXCLUDED.errors,
			metrics = EXCLUDED.metrics
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.RecoveryExecution, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, plan_id, service, strategy, cause, status,
		       start_time, end_time, current_step, total_steps,
		       errors, metrics, notify_users
		FROM recovery_executions
		ORDER BY start_time DESC
		LIMIT $1
	`
	var rows []executionRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	out := make([]domain.RecoveryExecution, 0, len(rows))
	for _, row := range rows {
		exec := domain.RecoveryExecution{
			ID:          row.ID,
			PlanID:      row.PlanID,
			Service:     row.Service,
			Strategy:    domain.Strategy(row.Strategy),
			Cause:       row.Cause,
			Status:      domain.ExecutionStatus(row.Status),
			StartTime:   row.StartTime,
			CurrentStep: row.CurrentStep,
			TotalSteps:  row.TotalSteps,
			NotifyUsers: row.NotifyUsers,
		}
		if row.EndTime.Valid {
			exec.EndTime = row.EndTime.Time
		}
		if row.Errors.Valid && row.Errors.String != "" {
			exec.Errors = strings.Split(row.Errors.String, "\n")
		}
		if len(row.Metrics) > 0 {
			if err := json.Unmarshal(row.Metrics, &exec.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics for %s: %w", row.ID, err)
			}
		}
		out = append(out, exec)
	}
	return out, nil
}

// Close implements history.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
