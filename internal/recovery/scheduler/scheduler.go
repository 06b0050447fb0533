// Package scheduler owns recovery execution records and dispatches pending
// executions to a runner under a concurrency ceiling. Dispatch is FIFO within
// capacity: admission order is preserved, throughput is capped.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/recovery/metrics"
)

// Config holds scheduler settings.
type Config struct {
	MaxConcurrent    int
	DispatchInterval time.Duration
	Retention        time.Duration // how long finished executions stay inspectable
}

// DefaultConfig returns the standard scheduler settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    3,
		DispatchInterval: time.Second,
		Retention:        time.Minute,
	}
}

// Runner executes one recovery execution against its plan.
type Runner interface {
	Run(ctx context.Context, exec *Execution, plan domain.RecoveryPlan)
}

// Scheduler is the synchronized execution store and dispatch loop.
type Scheduler struct {
	mu      sync.Mutex
	execs   map[string]*Execution
	queue   []string // execution ids in admission order
	running int
	runner  Runner
	cfg     Config
	log     *slog.Logger
}

// New creates a scheduler. The runner must be set before Start.
func New(cfg Config, log *slog.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = DefaultConfig().DispatchInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		execs: make(map[string]*Execution),
		cfg:   cfg,
		log:   log,
	}
}

// SetRunner wires the executor. Must be called before Start.
func (s *Scheduler) SetRunner(r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = r
}

// Trigger enqueues a recovery execution for the service. It is idempotent per
// service: when a pending or running execution already exists its id is
// returned with created=false.
func (s *Scheduler) Trigger(plan domain.RecoveryPlan, service, cause string, strat domain.Strategy) (id string, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.execs {
		snap := e.Snapshot()
		if snap.Service == service &&
			(snap.Status == domain.ExecutionPending || snap.Status == domain.ExecutionRunning) {
			return snap.ID, false
		}
	}

	exec := &Execution{
		plan: plan,
		data: domain.RecoveryExecution{
			ID:          uuid.New().String(),
			PlanID:      plan.ID,
			Service:     service,
			Strategy:    strat,
			Cause:       cause,
			Status:      domain.ExecutionPending,
			StartTime:   time.Now(),
			TotalSteps:  len(plan.Steps),
			Metrics:     make(map[string]any),
			NotifyUsers: plan.Impact != domain.ImpactNone,
		},
	}
	s.execs[exec.data.ID] = exec
	s.queue = append(s.queue, exec.data.ID)
	s.updateGauges()

	s.log.Info("recovery queued",
		"service", service,
		"plan", plan.ID,
		"strategy", strat,
		"execution_id", exec.data.ID,
		"cause", cause,
	)
	return exec.data.ID, true
}

// Cancel moves a pending execution straight to cancelled, or requests
// cooperative cancellation of a running one. Returns the execution snapshot
// and whether anything was cancelled.
func (s *Scheduler) Cancel(id string) (domain.RecoveryExecution, bool) {
	s.mu.Lock()
	e, ok := s.execs[id]
	s.mu.Unlock()
	if !ok {
		return domain.RecoveryExecution{}, false
	}

	cancelled := e.cancel()
	if cancelled {
		s.mu.Lock()
		s.updateGauges()
		s.mu.Unlock()
		s.log.Info("recovery cancelled", "execution_id", id)
	}
	return e.Snapshot(), cancelled
}

// Get returns one execution snapshot.
func (s *Scheduler) Get(id string) (domain.RecoveryExecution, bool) {
	s.mu.Lock()
	e, ok := s.execs[id]
	s.mu.Unlock()
	if !ok {
		return domain.RecoveryExecution{}, false
	}
	return e.Snapshot(), true
}

// Active returns snapshots of every pending or running execution, keyed by id.
func (s *Scheduler) Active() map[string]domain.RecoveryExecution {
	out := make(map[string]domain.RecoveryExecution)
	for _, snap := range s.All() {
		if snap.Status == domain.ExecutionPending || snap.Status == domain.ExecutionRunning {
			out[snap.ID] = snap
		}
	}
	return out
}

// All returns snapshots of every retained execution.
func (s *Scheduler) All() []domain.RecoveryExecution {
	s.mu.Lock()
	execs := make([]*Execution, 0, len(s.execs))
	for _, e := range s.execs {
		execs = append(execs, e)
	}
	s.mu.Unlock()

	out := make([]domain.RecoveryExecution, 0, len(execs))
	for _, e := range execs {
		out = append(out, e.Snapshot())
	}
	return out
}

// HasActive reports the id of the pending/running execution for a service.
func (s *Scheduler) HasActive(service string) (string, bool) {
	for _, snap := range s.All() {
		if snap.Service == service &&
			(snap.Status == domain.ExecutionPending || snap.Status == domain.ExecutionRunning) {
			return snap.ID, true
		}
	}
	return "", false
}

// Start runs the dispatch loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Dispatch(ctx)
			s.purge(time.Now())
		}
	}
}

// Dispatch hands queued executions to the runner while capacity remains.
// Exposed so tests and the orchestrator can drive the queue without waiting
// for the ticker.
func (s *Scheduler) Dispatch(ctx context.Context) {
	for {
		exec := s.dequeue()
		if exec == nil {
			return
		}

		go func(e *Execution) {
			defer func() {
				s.mu.Lock()
				s.running--
				s.updateGauges()
				s.mu.Unlock()
			}()
			s.runner.Run(ctx, e, e.plan)
		}(exec)
	}
}

// dequeue pops the oldest pending execution if capacity allows, marking it
// running. Returns nil when the queue is empty or capacity is exhausted.
func (s *Scheduler) dequeue() *Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner == nil || s.running >= s.cfg.MaxConcurrent {
		return nil
	}

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]

		e, ok := s.execs[id]
		if !ok || !e.markRunning() {
			continue // cancelled or purged while queued
		}
		s.running++
		s.updateGauges()
		return e
	}
	return nil
}

// purge drops finished executions older than the retention window.
func (s *Scheduler) purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.execs {
		snap := e.Snapshot()
		if snap.Status.Terminal() && !snap.EndTime.IsZero() &&
			now.Sub(snap.EndTime) > s.cfg.Retention {
			delete(s.execs, id)
		}
	}
	s.updateGauges()
}

// updateGauges recomputes the queue/running gauges. Callers hold s.mu.
func (s *Scheduler) updateGauges() {
	pending := 0
	for _, e := range s.execs {
		if e.Snapshot().Status == domain.ExecutionPending {
			pending++
		}
	}
	metrics.RecoveriesQueued.Set(float64(pending))
	metrics.RecoveriesRunning.Set(float64(s.running))
}
