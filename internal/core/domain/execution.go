package domain

import "time"

// ExecutionStatus is the lifecycle state of a recovery execution.
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "pending"
	ExecutionRunning    ExecutionStatus = "running"
	ExecutionSucceeded  ExecutionStatus = "success"
	ExecutionFailed     ExecutionStatus = "failed"
	ExecutionCancelled  ExecutionStatus = "cancelled"
	ExecutionRolledBack ExecutionStatus = "rolled_back"
)

// Terminal reports whether the status is a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionCancelled, ExecutionRolledBack:
		return true
	}
	return false
}

// RecoveryExecution is one concrete run of a plan against a service.
// CurrentStep is 1-based: the step currently (or last) being executed,
// equal to TotalSteps after a fully successful run.
type RecoveryExecution struct {
	ID          string          `json:"id"`
	PlanID      string          `json:"plan_id"`
	Service     string          `json:"service"`
	Strategy    Strategy        `json:"strategy"`
	Cause       string          `json:"cause"`
	Status      ExecutionStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time,omitempty"`
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	Errors      []string        `json:"errors,omitempty"`
	Metrics     map[string]any  `json:"metrics,omitempty"`
	NotifyUsers bool            `json:"notify_users"`
}

// Statistics is an aggregate view over the engine's in-memory state.
type Statistics struct {
	Services             int                   `json:"services"`
	ByStatus             map[ServiceStatus]int `json:"by_status"`
	TotalRecoveries      int                   `json:"total_recoveries"`
	SuccessfulRecoveries int                   `json:"successful_recoveries"`
	FailedRecoveries     int                   `json:"failed_recoveries"`
	ActiveRecoveries     int                   `json:"active_recoveries"`
	QueuedRecoveries     int                   `json:"queued_recoveries"`
}
