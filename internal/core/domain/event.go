package domain

import "time"

// EventType identifies an engine event observers can subscribe to.
type EventType string

const (
	EventHealthChanged     EventType = "health_changed"
	EventRecoveryStarted   EventType = "recovery_started"
	EventRecoveryCompleted EventType = "recovery_completed"
	EventRecoveryFailed    EventType = "recovery_failed"
	EventServiceRecovered  EventType = "service_recovered"
)

// Event is the structured payload delivered to subscribers.
type Event struct {
	Type        EventType     `json:"type"`
	Service     string        `json:"service"`
	OldStatus   ServiceStatus `json:"old_status,omitempty"`
	NewStatus   ServiceStatus `json:"new_status,omitempty"`
	ExecutionID string        `json:"execution_id,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Severity grades user-facing notifications.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Phase marks which point of a recovery a notification refers to.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Notification is the payload handed to the external user notifier.
type Notification struct {
	Service     string    `json:"service"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	Phase       Phase     `json:"phase"`
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
}
