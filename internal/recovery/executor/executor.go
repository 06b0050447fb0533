// Package executor runs a recovery plan's steps against a service with
// per-step timeouts, retry with backoff, and best-effort rollback.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/recovery/backoff"
	"github.com/vietddude/remedy/internal/recovery/metrics"
	"github.com/vietddude/remedy/internal/recovery/notify"
	"github.com/vietddude/remedy/internal/recovery/scheduler"
)

// defaultStepTimeout bounds steps that do not declare their own timeout.
const defaultStepTimeout = 10 * time.Second

// historyTimeout bounds best-effort history writes at execution end.
const historyTimeout = 5 * time.Second

var errCancelled = errors.New("recovery cancelled")

// ServiceState is the slice of registry behavior the executor needs.
type ServiceState interface {
	Target(name string) (domain.StepTarget, bool)
	FinishRecovery(name string, success bool) (domain.ServiceHealth, bool)
}

// HistorySink receives terminal executions for out-of-process retention.
type HistorySink interface {
	Record(ctx context.Context, exec domain.RecoveryExecution) error
}

// Executor runs recovery executions handed over by the scheduler.
type Executor struct {
	state    ServiceState
	events   *notify.Bus
	notifier notify.Notifier
	history  HistorySink
	log      *slog.Logger
}

// New creates an executor. notifier and history may be nil.
func New(state ServiceState, events *notify.Bus, notifier notify.Notifier, history HistorySink, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		state:    state,
		events:   events,
		notifier: notifier,
		history:  history,
		log:      log,
	}
}

// Run executes the plan's steps strictly in order. It implements
// scheduler.Runner.
func (x *Executor) Run(ctx context.Context, exec *scheduler.Execution, plan domain.RecoveryPlan) {
	snap := exec.Snapshot()
	target, _ := x.state.Target(snap.Service)

	x.log.Info("recovery started",
		"service", snap.Service,
		"plan", plan.ID,
		"strategy", snap.Strategy,
		"execution_id", snap.ID,
	)
	x.publish(domain.EventRecoveryStarted, snap)
	x.notifyUsers(ctx, plan, snap, domain.PhaseStarted,
		fmt.Sprintf("recovery of %s started (%s)", snap.Service, plan.ID))

	pctx := ctx
	if plan.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, plan.Timeout)
		defer cancel()
	}

	for i, step := range plan.Steps {
		if exec.CancelRequested() {
			x.finishCancelled(ctx, exec)
			return
		}
		exec.SetCurrentStep(i + 1)

		err := x.runStep(pctx, exec, plan, step, target)
		if err == nil {
			continue
		}
		if errors.Is(err, errCancelled) {
			x.finishCancelled(ctx, exec)
			return
		}

		exec.AddError(fmt.Sprintf("step %d (%s): %v", i+1, step.Name, err))
		x.rollback(ctx, exec, step, plan, target)
		x.finishFailed(ctx, exec, plan)
		return
	}

	exec.SetCurrentStep(len(plan.Steps))
	x.finishSucceeded(ctx, exec, plan)
}

// runStep attempts one step up to Retries+1 times, sleeping per the plan's
// retry policy between attempts. Steps that declare no retries of their own
// inherit the plan's MaxRetries.
func (x *Executor) runStep(ctx context.Context, exec *scheduler.Execution, plan domain.RecoveryPlan, step domain.RecoveryStep, target domain.StepTarget) error {
	retries := step.Retries
	if retries == 0 {
		retries = plan.Retry.MaxRetries
	}
	attempts := retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if exec.CancelRequested() {
			return errCancelled
		}

		err := x.attempt(ctx, step, target)
		if err == nil {
			return nil
		}
		lastErr = err
		x.log.Warn("recovery step attempt failed",
			"service", target.Service,
			"step", step.Name,
			"attempt", attempt,
			"of", attempts,
			"error", err,
		)

		if attempt < attempts {
			metrics.StepRetriesTotal.WithLabelValues(plan.ID, step.Name).Inc()
			delay := backoff.Delay(plan.Retry, attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("plan timeout during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}

// attempt runs the step's action, then its verification when present. Both
// must succeed under the step timeout; a call that does not observe its
// deadline is abandoned and counted as timed out.
func (x *Executor) attempt(ctx context.Context, step domain.RecoveryStep, target domain.StepTarget) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := call(sctx, step.Action, target); err != nil {
		return err
	}
	if step.Verify != nil {
		if err := call(sctx, step.Verify, target); err != nil {
			return fmt.Errorf("verification: %w", err)
		}
	}
	return nil
}

// call invokes f without trusting it to observe ctx: on deadline the call is
// abandoned and the deadline error returned.
func call(ctx context.Context, f domain.StepFunc, target domain.StepTarget) error {
	if f == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- f(ctx, target)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rollback best-effort unwinds the failing step, then any plan-level rollback
// steps. Failures are logged and recorded but never abort bookkeeping.
func (x *Executor) rollback(ctx context.Context, exec *scheduler.Execution, failed domain.RecoveryStep, plan domain.RecoveryPlan, target domain.StepTarget) {
	rolledBack := 0
	if failed.Rollback != nil {
		if err := x.runRollback(ctx, failed.Rollback, failed.Timeout, target); err != nil {
			x.log.Warn("step rollback failed", "service", target.Service, "step", failed.Name, "error", err)
		} else {
			rolledBack++
		}
	}
	for _, step := range plan.RollbackSteps {
		if err := x.runRollback(ctx, step.Action, step.Timeout, target); err != nil {
			x.log.Warn("plan rollback step failed", "service", target.Service, "step", step.Name, "error", err)
			continue
		}
		rolledBack++
	}
	if rolledBack > 0 {
		exec.SetMetric("rolled_back_steps", rolledBack)
	}
}

func (x *Executor) runRollback(ctx context.Context, f domain.StepFunc, timeout time.Duration, target domain.StepTarget) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(rctx, f, target)
}

func (x *Executor) finishSucceeded(ctx context.Context, exec *scheduler.Execution, plan domain.RecoveryPlan) {
	snap := exec.Finish(domain.ExecutionSucceeded)
	health, _ := x.state.FinishRecovery(snap.Service, true)

	x.log.Info("recovery succeeded",
		"service", snap.Service,
		"execution_id", snap.ID,
		"recovery_count", health.RecoveryCount,
	)
	x.observeOutcome(snap)
	x.publish(domain.EventRecoveryCompleted, snap)
	x.publish(domain.EventServiceRecovered, snap)
	x.notifyUsers(ctx, plan, snap, domain.PhaseSucceeded,
		fmt.Sprintf("service %s recovered", snap.Service))
	x.record(snap)
}

func (x *Executor) finishFailed(ctx context.Context, exec *scheduler.Execution, plan domain.RecoveryPlan) {
	snap := exec.Finish(domain.ExecutionFailed)
	x.state.FinishRecovery(snap.Service, false)

	x.log.Error("recovery failed",
		"service", snap.Service,
		"execution_id", snap.ID,
		"errors", snap.Errors,
	)
	x.observeOutcome(snap)
	x.publish(domain.EventRecoveryFailed, snap)
	x.notifyUsers(ctx, plan, snap, domain.PhaseFailed,
		fmt.Sprintf("recovery of %s failed", snap.Service))
	x.record(snap)
}

func (x *Executor) finishCancelled(ctx context.Context, exec *scheduler.Execution) {
	snap := exec.Finish(domain.ExecutionCancelled)
	x.state.FinishRecovery(snap.Service, false)
	x.log.Info("recovery cancelled", "service", snap.Service, "execution_id", snap.ID)
	x.observeOutcome(snap)
	x.record(snap)
}

func (x *Executor) observeOutcome(snap domain.RecoveryExecution) {
	metrics.RecoveriesTotal.WithLabelValues(snap.Service, string(snap.Strategy), string(snap.Status)).Inc()
	if !snap.EndTime.IsZero() {
		metrics.RecoveryDuration.WithLabelValues(string(snap.Strategy), string(snap.Status)).
			Observe(snap.EndTime.Sub(snap.StartTime).Seconds())
	}
}

func (x *Executor) publish(t domain.EventType, snap domain.RecoveryExecution) {
	if x.events == nil {
		return
	}
	x.events.Publish(domain.Event{
		Type:        t,
		Service:     snap.Service,
		ExecutionID: snap.ID,
		Timestamp:   time.Now(),
	})
}

func (x *Executor) notifyUsers(ctx context.Context, plan domain.RecoveryPlan, snap domain.RecoveryExecution, phase domain.Phase, message string) {
	if x.notifier == nil || !snap.NotifyUsers {
		return
	}
	n := domain.Notification{
		Service:     snap.Service,
		Message:     message,
		Severity:    notify.SeverityFor(plan.Impact, phase),
		Phase:       phase,
		ExecutionID: snap.ID,
		Timestamp:   time.Now(),
	}
	if err := x.notifier.Notify(ctx, n); err != nil {
		x.log.Warn("user notification failed", "service", snap.Service, "error", err)
	}
}

// record persists a terminal execution, detached from the run context so a
// shutdown does not lose the write.
func (x *Executor) record(snap domain.RecoveryExecution) {
	if x.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := x.history.Record(hctx, snap); err != nil {
		x.log.Warn("failed to record recovery history", "execution_id", snap.ID, "error", err)
	}
}
