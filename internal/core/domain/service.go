// Package domain defines the core types shared across the recovery engine.
package domain

import (
	"context"
	"time"
)

// ServiceStatus represents the derived health state of a registered service.
type ServiceStatus string

const (
	StatusHealthy    ServiceStatus = "healthy"
	StatusDegraded   ServiceStatus = "degraded"
	StatusUnhealthy  ServiceStatus = "unhealthy"
	StatusFailed     ServiceStatus = "failed"
	StatusRecovering ServiceStatus = "recovering"
)

// HealthChecker is the optional health-check capability a registered service
// may expose. A nil error means the service is healthy.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a plain function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

// CheckHealth implements HealthChecker.
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// Thresholds maps consecutive failure counts to health states.
// A count at or above a field's value puts the service in that state;
// higher states win.
type Thresholds struct {
	Degraded  int `yaml:"degraded_after"`
	Unhealthy int `yaml:"unhealthy_after"`
	Failed    int `yaml:"failed_after"`
}

// DefaultThresholds returns the standard 1/3/5 failure thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Degraded: 1, Unhealthy: 3, Failed: 5}
}

// DeriveStatus computes the status implied by a consecutive failure count.
func DeriveStatus(failures int, t Thresholds) ServiceStatus {
	switch {
	case failures >= t.Failed:
		return StatusFailed
	case failures >= t.Unhealthy:
		return StatusUnhealthy
	case failures >= t.Degraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// ServiceHealth is the health record kept for one registered service.
type ServiceHealth struct {
	Name                string            `json:"name"`
	Status              ServiceStatus     `json:"status"`
	LastCheckTime       time.Time         `json:"last_check_time"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	UptimeStart         time.Time         `json:"uptime_start"`
	ResponseTime        time.Duration     `json:"response_time"`
	ErrorRate           float64           `json:"error_rate"`
	Dependencies        []string          `json:"dependencies,omitempty"`
	FailoverTarget      string            `json:"failover_target,omitempty"`
	LastRecoveryTime    time.Time         `json:"last_recovery_time"`
	RecoveryCount       int               `json:"recovery_count"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Optional capabilities a registered service handle may implement. Built-in
// recovery plans probe for them and treat absence as a logical no-op.

// Restartable can be stopped and started in place.
type Restartable interface {
	StopService(ctx context.Context) error
	StartService(ctx context.Context) error
}

// ResourceClearer can drop caches, pools and other reclaimable state.
type ResourceClearer interface {
	ClearResources(ctx context.Context) error
}

// Degradable can run in a reduced-functionality mode.
type Degradable interface {
	SetDegraded(ctx context.Context, degraded bool) error
}

// Isolatable can be cut off from its dependents.
type Isolatable interface {
	Isolate(ctx context.Context, isolated bool) error
}

// FailoverCapable can hand its duties over to a standby instance.
type FailoverCapable interface {
	PrepareBackup(ctx context.Context) error
	TransferState(ctx context.Context) error
	ActivateBackup(ctx context.Context) error
}
