package registry

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

func newTestRegistry() *Registry {
	return New(domain.DefaultThresholds())
}

func TestRegister_EmptyName(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register("", nil, nil); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRegister_FreshRecord(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register("cache", struct{}{}, []string{"db"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	h, ok := r.Get("cache")
	if !ok {
		t.Fatal("expected record")
	}
	if h.Status != domain.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
	if h.ConsecutiveFailures != 0 || h.RecoveryCount != 0 {
		t.Error("expected zero counters")
	}
	if len(h.Dependencies) != 1 || h.Dependencies[0] != "db" {
		t.Errorf("unexpected dependencies %v", h.Dependencies)
	}
}

func TestUnregister_UnknownNoop(t *testing.T) {
	r := newTestRegistry()
	r.Unregister("ghost") // must not panic
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, []string{"db"})

	h, _ := r.Get("cache")
	h.Dependencies[0] = "mutated"
	h.Metadata["x"] = "y"

	again, _ := r.Get("cache")
	if again.Dependencies[0] != "db" {
		t.Error("external mutation leaked into registry")
	}
	if _, ok := again.Metadata["x"]; ok {
		t.Error("metadata mutation leaked into registry")
	}
}

func TestRecord_StatusDerivation(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)

	cases := []struct {
		failures int
		want     domain.ServiceStatus
	}{
		{1, domain.StatusDegraded},
		{2, domain.StatusDegraded},
		{3, domain.StatusUnhealthy},
		{4, domain.StatusUnhealthy},
		{5, domain.StatusFailed},
		{6, domain.StatusFailed},
	}

	for _, c := range cases {
		_, h, _ := r.RecordFailure("cache", time.Millisecond)
		if h.ConsecutiveFailures != c.failures {
			t.Fatalf("expected %d failures, got %d", c.failures, h.ConsecutiveFailures)
		}
		if h.Status != c.want {
			t.Errorf("failures=%d: expected %s, got %s", c.failures, c.want, h.Status)
		}
	}

	_, h, _ := r.RecordSuccess("cache", time.Millisecond)
	if h.ConsecutiveFailures != 0 {
		t.Errorf("expected reset, got %d", h.ConsecutiveFailures)
	}
	if h.Status != domain.StatusHealthy {
		t.Errorf("expected healthy after success, got %s", h.Status)
	}
}

func TestRecord_RecoveringSticks(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)
	r.MarkRecovering("cache")

	_, h, _ := r.RecordSuccess("cache", 0)
	if h.Status != domain.StatusRecovering {
		t.Errorf("recovering must only clear via FinishRecovery, got %s", h.Status)
	}

	h, _ = r.FinishRecovery("cache", true)
	if h.Status != domain.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
	if h.RecoveryCount != 1 {
		t.Errorf("expected recovery count 1, got %d", h.RecoveryCount)
	}
}

func TestFinishRecovery_FailureRestoresDerived(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)
	for i := 0; i < 4; i++ {
		r.RecordFailure("cache", 0)
	}
	r.MarkRecovering("cache")

	h, _ := r.FinishRecovery("cache", false)
	if h.Status != domain.StatusUnhealthy {
		t.Errorf("expected prior unhealthy status, got %s", h.Status)
	}
	if h.ConsecutiveFailures != 4 {
		t.Errorf("failure streak must survive a failed recovery, got %d", h.ConsecutiveFailures)
	}
}

func TestForceStatus_OneTick(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)

	if !r.ForceStatus("cache", domain.StatusUnhealthy) {
		t.Fatal("ForceStatus failed")
	}
	h, _ := r.Get("cache")
	if h.Status != domain.StatusUnhealthy {
		t.Fatalf("expected forced unhealthy, got %s", h.Status)
	}

	// The forced status survives exactly one recorded check.
	_, h, _ = r.RecordSuccess("cache", 0)
	if h.Status != domain.StatusUnhealthy {
		t.Errorf("override should hold for one tick, got %s", h.Status)
	}
	_, h, _ = r.RecordSuccess("cache", 0)
	if h.Status != domain.StatusHealthy {
		t.Errorf("derivation should resume, got %s", h.Status)
	}
}

func TestForceStatus_Invalid(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)
	if r.ForceStatus("cache", "bogus") {
		t.Error("expected rejection of unknown status")
	}
	if r.ForceStatus("ghost", domain.StatusFailed) {
		t.Error("expected rejection of unknown service")
	}
}

func TestErrorRate(t *testing.T) {
	r := newTestRegistry()
	r.Register("cache", nil, nil)

	for i := 0; i < 3; i++ {
		r.RecordFailure("cache", 0)
	}
	_, h, _ := r.RecordSuccess("cache", 0)
	if h.ErrorRate != 0.75 {
		t.Errorf("expected error rate 0.75, got %f", h.ErrorRate)
	}
}

func TestTarget_ChecksCapability(t *testing.T) {
	r := newTestRegistry()
	r.Register("plain", struct{}{}, nil)
	r.Register("checked", domain.CheckerFunc(func(ctx context.Context) error { return nil }), nil)

	tgt, _ := r.Target("plain")
	if tgt.Checker != nil {
		t.Error("plain handle must not expose a checker")
	}
	tgt, _ = r.Target("checked")
	if tgt.Checker == nil {
		t.Error("checker capability not detected")
	}
}
