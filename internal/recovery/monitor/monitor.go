// Package monitor runs the periodic health-check loop and drives the
// per-service health state machine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/recovery/metrics"
	"github.com/vietddude/remedy/internal/recovery/notify"
	"github.com/vietddude/remedy/internal/recovery/registry"
)

// TriggerFunc asks the engine to start a recovery for a service. The engine
// selects the strategy and deduplicates concurrent triggers.
type TriggerFunc func(service, cause string)

// ErrorReporter receives health-check errors for external collection.
type ErrorReporter interface {
	ReportCheckError(service string, err error)
}

// Config holds the check loop settings.
type Config struct {
	Interval     time.Duration
	CheckTimeout time.Duration
}

// DefaultConfig returns the standard monitor settings.
func DefaultConfig() Config {
	return Config{
		Interval:     10 * time.Second,
		CheckTimeout: 5 * time.Second,
	}
}

// Monitor checks every registered service on a fixed interval. Ticks never
// overlap: a slow round simply delays the next one.
type Monitor struct {
	reg      *registry.Registry
	trigger  TriggerFunc
	reporter ErrorReporter
	events   *notify.Bus
	cfg      Config
	log      *slog.Logger
}

// New creates a monitor. reporter may be nil.
func New(reg *registry.Registry, trigger TriggerFunc, events *notify.Bus, reporter ErrorReporter, cfg Config, log *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultConfig().CheckTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		reg:      reg,
		trigger:  trigger,
		reporter: reporter,
		events:   events,
		cfg:      cfg,
		log:      log,
	}
}

// Start runs the check loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll runs one health-check round over every registered service.
// Exposed so tests and callers can drive ticks without the wall clock.
func (m *Monitor) CheckAll(ctx context.Context) {
	for _, name := range m.reg.Names() {
		m.checkService(ctx, name)
	}
}

func (m *Monitor) checkService(ctx context.Context, name string) {
	target, ok := m.reg.Target(name)
	if !ok {
		return // unregistered since the round started
	}

	start := time.Now()
	err := m.runCheck(ctx, target)
	elapsed := time.Since(start)

	var old, updated domain.ServiceHealth
	if err != nil {
		metrics.HealthChecksTotal.WithLabelValues(name, "failure").Inc()
		if m.reporter != nil {
			m.reporter.ReportCheckError(name, err)
		}
		m.log.Debug("health check failed", "service", name, "error", err)
		old, updated, ok = m.reg.RecordFailure(name, elapsed)
	} else {
		metrics.HealthChecksTotal.WithLabelValues(name, "success").Inc()
		old, updated, ok = m.reg.RecordSuccess(name, elapsed)
	}
	if !ok {
		return
	}

	metrics.ServiceStatus.WithLabelValues(name).Set(metrics.StatusCode(updated.Status))
	metrics.ConsecutiveFailures.WithLabelValues(name).Set(float64(updated.ConsecutiveFailures))

	if updated.Status != old.Status {
		m.log.Info("service status changed",
			"service", name,
			"from", old.Status,
			"to", updated.Status,
			"consecutive_failures", updated.ConsecutiveFailures,
		)
		if m.events != nil {
			m.events.Publish(domain.Event{
				Type:      domain.EventHealthChanged,
				Service:   name,
				OldStatus: old.Status,
				NewStatus: updated.Status,
				Timestamp: time.Now(),
			})
		}
	}

	// Unhealthy and failed services ask for recovery every failing tick; the
	// scheduler's idempotent trigger collapses a streak into one execution.
	if m.trigger != nil &&
		(updated.Status == domain.StatusUnhealthy || updated.Status == domain.StatusFailed) {
		m.trigger(name, fmt.Sprintf("%d consecutive health check failures", updated.ConsecutiveFailures))
	}
}

// runCheck invokes the service's health-check capability under the configured
// timeout. A service without one is healthy as long as its handle is non-nil.
// A check that ignores its deadline is abandoned and counted as timed out.
func (m *Monitor) runCheck(ctx context.Context, target domain.StepTarget) error {
	if target.Checker == nil {
		if target.Handle == nil {
			return errors.New("service handle is nil")
		}
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- target.Checker.CheckHealth(cctx)
	}()
	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return cctx.Err()
	}
}
