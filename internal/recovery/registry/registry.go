// Package registry holds the monitored service handles and their health
// records. It is the single owner of ServiceHealth state; all reads return
// copies.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

// errorRateWindow bounds the sliding window of recent check outcomes used to
// derive a service's error rate.
const errorRateWindow = 20

type entry struct {
	handle  any
	checker domain.HealthChecker
	health  domain.ServiceHealth
	results []bool // recent check outcomes, newest last
	forced  bool   // next derived transition is skipped (manual override)
}

// Registry is the synchronized store of registered services.
type Registry struct {
	mu         sync.RWMutex
	services   map[string]*entry
	thresholds domain.Thresholds
}

// New creates an empty registry using the given failure thresholds.
func New(thresholds domain.Thresholds) *Registry {
	return &Registry{
		services:   make(map[string]*entry),
		thresholds: thresholds,
	}
}

// Register adds (or replaces) a service with a fresh healthy record.
// svc is the service object; if it implements domain.HealthChecker its
// health-check capability is used by the monitor.
func (r *Registry) Register(name string, svc any, dependencies []string) error {
	if name == "" {
		return errors.New("service name must not be empty")
	}

	checker, _ := svc.(domain.HealthChecker)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = &entry{
		handle:  svc,
		checker: checker,
		health: domain.ServiceHealth{
			Name:         name,
			Status:       domain.StatusHealthy,
			UptimeStart:  now,
			Dependencies: append([]string(nil), dependencies...),
			Metadata:     make(map[string]string),
		},
	}
	return nil
}

// Unregister removes a service and its record. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Names returns the registered service names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

// Get returns a snapshot of one service's health record.
func (r *Registry) Get(name string) (domain.ServiceHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return domain.ServiceHealth{}, false
	}
	return copyHealth(e.health), true
}

// GetAll returns snapshots of every health record.
func (r *Registry) GetAll() map[string]domain.ServiceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.ServiceHealth, len(r.services))
	for name, e := range r.services {
		out[name] = copyHealth(e.health)
	}
	return out
}

// Target returns the step target for a service: its handle and checker.
func (r *Registry) Target(name string) (domain.StepTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return domain.StepTarget{}, false
	}
	return domain.StepTarget{Service: name, Handle: e.handle, Checker: e.checker}, true
}

// SetFailoverTarget declares a standby for the service, enabling the
// failover strategy arm. Returns false for unknown services.
func (r *Registry) SetFailoverTarget(name, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return false
	}
	e.health.FailoverTarget = target
	return true
}

// SetMetadata attaches a free-form key/value to the service record.
func (r *Registry) SetMetadata(name, key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return false
	}
	e.health.Metadata[key] = value
	return true
}

// RecordSuccess applies a successful health check. It returns the record
// before and after the update.
func (r *Registry) RecordSuccess(name string, responseTime time.Duration) (old, updated domain.ServiceHealth, ok bool) {
	return r.record(name, responseTime, true)
}

// RecordFailure applies a failed health check.
func (r *Registry) RecordFailure(name string, responseTime time.Duration) (old, updated domain.ServiceHealth, ok bool) {
	return r.record(name, responseTime, false)
}

func (r *Registry) record(name string, responseTime time.Duration, success bool) (domain.ServiceHealth, domain.ServiceHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return domain.ServiceHealth{}, domain.ServiceHealth{}, false
	}

	old := copyHealth(e.health)

	if success {
		e.health.ConsecutiveFailures = 0
	} else {
		e.health.ConsecutiveFailures++
	}
	e.health.LastCheckTime = time.Now()
	e.health.ResponseTime = responseTime

	e.results = append(e.results, success)
	if len(e.results) > errorRateWindow {
		e.results = e.results[1:]
	}
	e.health.ErrorRate = errorRate(e.results)

	switch {
	case e.forced:
		// Manual override holds for exactly one tick.
		e.forced = false
	case e.health.Status == domain.StatusRecovering:
		// Only recovery completion moves a recovering service.
	default:
		e.health.Status = domain.DeriveStatus(e.health.ConsecutiveFailures, r.thresholds)
	}

	return old, copyHealth(e.health), true
}

// ForceStatus overrides the derived status for one tick. Returns false for
// unknown services or unknown statuses.
func (r *Registry) ForceStatus(name string, status domain.ServiceStatus) bool {
	switch status {
	case domain.StatusHealthy, domain.StatusDegraded, domain.StatusUnhealthy,
		domain.StatusFailed, domain.StatusRecovering:
	default:
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return false
	}
	e.health.Status = status
	e.forced = true
	return true
}

// MarkRecovering flags a service as under recovery.
func (r *Registry) MarkRecovering(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return false
	}
	e.health.Status = domain.StatusRecovering
	return true
}

// FinishRecovery records the outcome of a recovery execution. On success the
// failure streak resets and the service returns to healthy; on failure the
// service falls back to the status its failure count implies.
func (r *Registry) FinishRecovery(name string, success bool) (domain.ServiceHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.services[name]
	if !ok {
		return domain.ServiceHealth{}, false
	}

	if success {
		e.health.ConsecutiveFailures = 0
		e.health.Status = domain.StatusHealthy
		e.health.RecoveryCount++
		e.health.LastRecoveryTime = time.Now()
	} else {
		e.health.Status = domain.DeriveStatus(e.health.ConsecutiveFailures, r.thresholds)
	}
	return copyHealth(e.health), true
}

func errorRate(results []bool) float64 {
	if len(results) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range results {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(results))
}

func copyHealth(h domain.ServiceHealth) domain.ServiceHealth {
	out := h
	out.Dependencies = append([]string(nil), h.Dependencies...)
	if h.Metadata != nil {
		out.Metadata = make(map[string]string, len(h.Metadata))
		for k, v := range h.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
