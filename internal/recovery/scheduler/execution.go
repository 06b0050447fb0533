package scheduler

import (
	"sync"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Execution is one synchronized recovery execution record. The scheduler
// creates it; the executor mutates it through these methods for its lifetime.
type Execution struct {
	mu        sync.Mutex
	data      domain.RecoveryExecution
	plan      domain.RecoveryPlan
	cancelled bool // cooperative cancellation flag, observed between attempts
}

// ID returns the execution id.
func (e *Execution) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.ID
}

// Service returns the target service name.
func (e *Execution) Service() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Service
}

// Snapshot returns a copy of the execution record.
func (e *Execution) Snapshot() domain.RecoveryExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyData()
}

// SetCurrentStep records the 1-based step now being executed.
func (e *Execution) SetCurrentStep(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.CurrentStep = n
}

// AddError appends an error message to the execution's error list.
func (e *Execution) AddError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.Errors = append(e.data.Errors, msg)
}

// SetMetric stores an arbitrary metric on the execution.
func (e *Execution) SetMetric(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.Metrics[key] = value
}

// CancelRequested reports whether cancellation was requested. The executor
// checks it before every step and attempt.
func (e *Execution) CancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Finish moves the execution to a terminal status. Later calls are ignored.
// Returns the final snapshot.
func (e *Execution) Finish(status domain.ExecutionStatus) domain.RecoveryExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.data.Status.Terminal() {
		e.data.Status = status
		e.data.EndTime = time.Now()
	}
	return e.copyData()
}

// markRunning moves a pending execution to running.
func (e *Execution) markRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.Status != domain.ExecutionPending || e.cancelled {
		return false
	}
	e.data.Status = domain.ExecutionRunning
	return true
}

// cancel requests cancellation. A pending execution is finalized immediately;
// a running one keeps going until the executor observes the flag.
func (e *Execution) cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.data.Status {
	case domain.ExecutionPending:
		e.cancelled = true
		e.data.Status = domain.ExecutionCancelled
		e.data.EndTime = time.Now()
		return true
	case domain.ExecutionRunning:
		e.cancelled = true
		return true
	}
	return false
}

// copyData clones the record. Callers hold e.mu.
func (e *Execution) copyData() domain.RecoveryExecution {
	out := e.data
	out.Errors = append([]string(nil), e.data.Errors...)
	out.Metrics = make(map[string]any, len(e.data.Metrics))
	for k, v := range e.data.Metrics {
		out.Metrics[k] = v
	}
	return out
}
