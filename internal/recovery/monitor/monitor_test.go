package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/recovery/notify"
	"github.com/vietddude/remedy/internal/recovery/registry"
)

// ===== Mocks =====

type scriptedService struct {
	mu   sync.Mutex
	errs []error
	idx  int
}

func (s *scriptedService) CheckHealth(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.errs) {
		return nil
	}
	err := s.errs[s.idx]
	s.idx++
	return err
}

type stuckService struct{}

func (stuckService) CheckHealth(ctx context.Context) error {
	time.Sleep(10 * time.Second)
	return nil
}

type triggerRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *triggerRecorder) fn(service, cause string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s: %s", service, cause))
}

func (r *triggerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) ReportCheckError(service string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func failN(n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = errors.New("connection refused")
	}
	return errs
}

// ===== Tests =====

func TestCheckAll_StatusProgression(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	svc := &scriptedService{errs: failN(3)}
	if err := reg.Register("cache", svc, nil); err != nil {
		t.Fatal(err)
	}

	m := New(reg, nil, nil, nil, DefaultConfig(), nil)
	want := []domain.ServiceStatus{
		domain.StatusDegraded,
		domain.StatusDegraded,
		domain.StatusUnhealthy,
	}
	for i, status := range want {
		m.CheckAll(context.Background())
		h, _ := reg.Get("cache")
		if h.Status != status {
			t.Fatalf("tick %d: status = %s, want %s", i+1, h.Status, status)
		}
		if h.ConsecutiveFailures != i+1 {
			t.Fatalf("tick %d: failures = %d, want %d", i+1, h.ConsecutiveFailures, i+1)
		}
	}

	// The script is exhausted, so the next check succeeds and resets.
	m.CheckAll(context.Background())
	h, _ := reg.Get("cache")
	if h.Status != domain.StatusHealthy || h.ConsecutiveFailures != 0 {
		t.Fatalf("after success: status = %s failures = %d", h.Status, h.ConsecutiveFailures)
	}
}

func TestCheckAll_PublishesTransitionEvents(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("api", &scriptedService{errs: failN(3)}, nil); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var events []domain.Event
	bus := notify.NewBus()
	bus.Subscribe(domain.EventHealthChanged, func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	m := New(reg, nil, bus, nil, DefaultConfig(), nil)
	for i := 0; i < 3; i++ {
		m.CheckAll(context.Background())
	}

	mu.Lock()
	defer mu.Unlock()
	// healthy -> degraded at tick 1, degraded -> unhealthy at tick 3. Tick 2
	// changes nothing and must stay silent.
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].OldStatus != domain.StatusHealthy || events[0].NewStatus != domain.StatusDegraded {
		t.Errorf("first event: %s -> %s", events[0].OldStatus, events[0].NewStatus)
	}
	if events[1].OldStatus != domain.StatusDegraded || events[1].NewStatus != domain.StatusUnhealthy {
		t.Errorf("second event: %s -> %s", events[1].OldStatus, events[1].NewStatus)
	}
}

func TestCheckAll_TriggersEveryFailingTickOnceUnhealthy(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("db", &scriptedService{errs: failN(5)}, nil); err != nil {
		t.Fatal(err)
	}

	rec := &triggerRecorder{}
	m := New(reg, rec.fn, nil, nil, DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		m.CheckAll(context.Background())
	}

	// Ticks 1-2 are below the unhealthy threshold; ticks 3, 4 and 5 fire.
	if rec.count() != 3 {
		t.Fatalf("trigger fired %d times, want 3", rec.count())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls[0] != "db: 3 consecutive health check failures" {
		t.Errorf("unexpected trigger cause: %q", rec.calls[0])
	}
}

func TestCheckAll_NoTriggerWhileRecovering(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("db", &scriptedService{errs: failN(5)}, nil); err != nil {
		t.Fatal(err)
	}

	rec := &triggerRecorder{}
	m := New(reg, rec.fn, nil, nil, DefaultConfig(), nil)
	for i := 0; i < 3; i++ {
		m.CheckAll(context.Background())
	}
	if rec.count() != 1 {
		t.Fatalf("trigger fired %d times, want 1", rec.count())
	}

	// A recovering service keeps failing checks without re-triggering.
	reg.MarkRecovering("db")
	m.CheckAll(context.Background())
	if rec.count() != 1 {
		t.Fatalf("trigger fired during recovery, count = %d", rec.count())
	}
}

func TestCheckAll_NilCheckerUsesHandlePresence(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("opaque", struct{ name string }{"opaque"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("ghost", nil, nil); err != nil {
		t.Fatal(err)
	}

	m := New(reg, nil, nil, nil, DefaultConfig(), nil)
	m.CheckAll(context.Background())

	if h, _ := reg.Get("opaque"); h.ConsecutiveFailures != 0 {
		t.Errorf("opaque service counted a failure: %d", h.ConsecutiveFailures)
	}
	if h, _ := reg.Get("ghost"); h.ConsecutiveFailures != 1 {
		t.Errorf("nil handle not counted as failure: %d", h.ConsecutiveFailures)
	}
}

func TestCheckAll_TimeoutCountsAsFailure(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("slow", stuckService{}, nil); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Interval: time.Second, CheckTimeout: 20 * time.Millisecond}
	rep := &errorRecorder{}
	m := New(reg, nil, nil, rep, cfg, nil)

	start := time.Now()
	m.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("check not abandoned at deadline, took %v", elapsed)
	}

	h, _ := reg.Get("slow")
	if h.ConsecutiveFailures != 1 {
		t.Fatalf("failures = %d, want 1", h.ConsecutiveFailures)
	}
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.errs) != 1 || !errors.Is(rep.errs[0], context.DeadlineExceeded) {
		t.Fatalf("reporter got %v, want deadline exceeded", rep.errs)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	reg := registry.New(domain.DefaultThresholds())
	if err := reg.Register("cache", &scriptedService{}, nil); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Interval: 5 * time.Millisecond, CheckTimeout: time.Second}
	m := New(reg, nil, nil, nil, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}

	if h, _ := reg.Get("cache"); h.LastCheckTime.IsZero() {
		t.Error("loop never ran a check")
	}
}
