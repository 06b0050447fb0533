package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

// =============================================================================
// Mock runner
// =============================================================================

type mockRunner struct {
	mu      sync.Mutex
	started []string
	release chan struct{} // closed to let runs finish
	outcome domain.ExecutionStatus
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		release: make(chan struct{}),
		outcome: domain.ExecutionSucceeded,
	}
}

func (r *mockRunner) Run(ctx context.Context, exec *Execution, plan domain.RecoveryPlan) {
	r.mu.Lock()
	r.started = append(r.started, exec.ID())
	r.mu.Unlock()
	<-r.release
	exec.Finish(r.outcome)
}

func (r *mockRunner) startedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func testPlan() domain.RecoveryPlan {
	return domain.RecoveryPlan{
		ID:       "restart_generic",
		Service:  domain.WildcardService,
		Strategy: domain.StrategyRestart,
		Impact:   domain.ImpactLow,
		Steps: []domain.RecoveryStep{
			{Name: "only", Action: func(context.Context, domain.StepTarget) error { return nil }},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// =============================================================================
// Tests
// =============================================================================

func TestTrigger_IdempotentPerService(t *testing.T) {
	s := New(DefaultConfig(), nil)
	s.SetRunner(newMockRunner())

	id1, created := s.Trigger(testPlan(), "cache", "3 consecutive failures", domain.StrategyRestart)
	if !created {
		t.Fatal("first trigger must create an execution")
	}
	id2, created := s.Trigger(testPlan(), "cache", "still failing", domain.StrategyRestart)
	if created {
		t.Error("second trigger must not create a duplicate")
	}
	if id1 != id2 {
		t.Errorf("expected same id, got %s and %s", id1, id2)
	}

	// A different service gets its own execution.
	id3, created := s.Trigger(testPlan(), "matchmaking", "failing", domain.StrategyRestart)
	if !created || id3 == id1 {
		t.Error("expected independent execution for another service")
	}
}

func TestTrigger_NewIDAfterCompletion(t *testing.T) {
	runner := newMockRunner()
	s := New(DefaultConfig(), nil)
	s.SetRunner(runner)

	id1, _ := s.Trigger(testPlan(), "cache", "failing", domain.StrategyRestart)
	s.Dispatch(context.Background())
	close(runner.release)
	waitFor(t, func() bool {
		snap, _ := s.Get(id1)
		return snap.Status == domain.ExecutionSucceeded
	})

	id2, created := s.Trigger(testPlan(), "cache", "failing again", domain.StrategyRestart)
	if !created || id2 == id1 {
		t.Errorf("expected a fresh execution after completion, got %s (created=%v)", id2, created)
	}
}

func TestDispatch_CapacityAndFIFO(t *testing.T) {
	runner := newMockRunner()
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	s := New(cfg, nil)
	s.SetRunner(runner)

	id1, _ := s.Trigger(testPlan(), "svc-a", "failing", domain.StrategyRestart)
	id2, _ := s.Trigger(testPlan(), "svc-b", "failing", domain.StrategyRestart)

	s.Dispatch(context.Background())
	waitFor(t, func() bool { return len(runner.startedIDs()) == 1 })

	if got := runner.startedIDs()[0]; got != id1 {
		t.Errorf("expected oldest execution first, got %s", got)
	}
	snap, _ := s.Get(id2)
	if snap.Status != domain.ExecutionPending {
		t.Errorf("second execution must wait for capacity, got %s", snap.Status)
	}

	// Releasing the first run frees capacity for the second.
	close(runner.release)
	waitFor(t, func() bool {
		snap, _ := s.Get(id1)
		return snap.Status == domain.ExecutionSucceeded
	})
	s.Dispatch(context.Background())
	waitFor(t, func() bool { return len(runner.startedIDs()) == 2 })
	if got := runner.startedIDs()[1]; got != id2 {
		t.Errorf("expected admission order, got %s", got)
	}
}

func TestCancel_Pending(t *testing.T) {
	runner := newMockRunner()
	s := New(DefaultConfig(), nil)
	s.SetRunner(runner)

	id, _ := s.Trigger(testPlan(), "cache", "failing", domain.StrategyRestart)
	snap, ok := s.Cancel(id)
	if !ok {
		t.Fatal("expected cancel to succeed")
	}
	if snap.Status != domain.ExecutionCancelled {
		t.Errorf("expected cancelled, got %s", snap.Status)
	}

	// A cancelled execution must never reach the runner.
	s.Dispatch(context.Background())
	time.Sleep(20 * time.Millisecond)
	if len(runner.startedIDs()) != 0 {
		t.Error("cancelled execution was dispatched")
	}
}

func TestCancel_RunningIsCooperative(t *testing.T) {
	runner := newMockRunner()
	s := New(DefaultConfig(), nil)
	s.SetRunner(runner)

	id, _ := s.Trigger(testPlan(), "cache", "failing", domain.StrategyRestart)
	s.Dispatch(context.Background())
	waitFor(t, func() bool { return len(runner.startedIDs()) == 1 })

	if _, ok := s.Cancel(id); !ok {
		t.Fatal("expected cancel of running execution to be accepted")
	}
	snap, _ := s.Get(id)
	if snap.Status != domain.ExecutionRunning {
		t.Errorf("in-flight run is not forcibly interrupted, got %s", snap.Status)
	}

	// The executor observes the flag between attempts.
	e := func() *Execution {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.execs[id]
	}()
	if !e.CancelRequested() {
		t.Error("cancellation flag not set")
	}
	close(runner.release)
}

func TestCancel_Unknown(t *testing.T) {
	s := New(DefaultConfig(), nil)
	if _, ok := s.Cancel("ghost"); ok {
		t.Error("expected cancel of unknown id to fail")
	}
}

func TestPurge_RetainsWithinGraceWindow(t *testing.T) {
	runner := newMockRunner()
	cfg := DefaultConfig()
	cfg.Retention = 50 * time.Millisecond
	s := New(cfg, nil)
	s.SetRunner(runner)

	id, _ := s.Trigger(testPlan(), "cache", "failing", domain.StrategyRestart)
	s.Dispatch(context.Background())
	close(runner.release)
	waitFor(t, func() bool {
		snap, _ := s.Get(id)
		return snap.Status == domain.ExecutionSucceeded
	})

	s.purge(time.Now())
	if _, ok := s.Get(id); !ok {
		t.Fatal("finished execution purged before the grace window expired")
	}

	s.purge(time.Now().Add(time.Second))
	if _, ok := s.Get(id); ok {
		t.Error("finished execution not purged after the grace window")
	}
}

func TestActive_OnlyPendingAndRunning(t *testing.T) {
	runner := newMockRunner()
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	s := New(cfg, nil)
	s.SetRunner(runner)

	id1, _ := s.Trigger(testPlan(), "svc-a", "failing", domain.StrategyRestart)
	id2, _ := s.Trigger(testPlan(), "svc-b", "failing", domain.StrategyRestart)
	s.Dispatch(context.Background())
	waitFor(t, func() bool { return len(runner.startedIDs()) == 1 })

	active := s.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 active executions, got %d", len(active))
	}
	if active[id1].Status != domain.ExecutionRunning {
		t.Errorf("expected %s running, got %s", id1, active[id1].Status)
	}
	if active[id2].Status != domain.ExecutionPending {
		t.Errorf("expected %s pending, got %s", id2, active[id2].Status)
	}

	close(runner.release)
	waitFor(t, func() bool {
		snap, _ := s.Get(id1)
		return snap.Status == domain.ExecutionSucceeded
	})
	if _, ok := s.Active()[id1]; ok {
		t.Error("finished execution must not be active")
	}
}
