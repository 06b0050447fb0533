package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/remedy/internal/core/domain"
)

var (
	// HealthChecksTotal counts health checks per service and result.
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remedy_health_checks_total",
			Help: "Total number of health checks",
		},
		[]string{"service", "result"},
	)

	// ServiceStatus exposes the current status of each service as a code
	// (0 healthy, 1 degraded, 2 unhealthy, 3 failed, 4 recovering).
	ServiceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remedy_service_status",
			Help: "Current service status code",
		},
		[]string{"service"},
	)

	// ConsecutiveFailures exposes the current failure streak per service.
	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remedy_consecutive_failures",
			Help: "Consecutive failed health checks",
		},
		[]string{"service"},
	)

	// RecoveriesTotal counts finished recovery executions.
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remedy_recoveries_total",
			Help: "Total number of finished recovery executions",
		},
		[]string{"service", "strategy", "outcome"},
	)

	// RecoveriesRunning tracks currently running executions.
	RecoveriesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remedy_recoveries_running",
			Help: "Recovery executions currently running",
		},
	)

	// RecoveriesQueued tracks executions waiting for dispatch.
	RecoveriesQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remedy_recoveries_queued",
			Help: "Recovery executions waiting in the queue",
		},
	)

	// StepRetriesTotal counts retried step attempts.
	StepRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remedy_step_retries_total",
			Help: "Total number of retried recovery step attempts",
		},
		[]string{"plan", "step"},
	)

	// RecoveryDuration tracks wall time of finished executions.
	RecoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remedy_recovery_duration_seconds",
			Help:    "Duration of finished recovery executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy", "outcome"},
	)
)

// StatusCode maps a service status to its gauge value.
func StatusCode(s domain.ServiceStatus) float64 {
	switch s {
	case domain.StatusHealthy:
		return 0
	case domain.StatusDegraded:
		return 1
	case domain.StatusUnhealthy:
		return 2
	case domain.StatusFailed:
		return 3
	case domain.StatusRecovering:
		return 4
	}
	return -1
}
