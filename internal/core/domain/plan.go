package domain

import (
	"context"
	"time"
)

// Strategy is the category of remedy applied to a degraded service.
type Strategy string

const (
	StrategyRestart  Strategy = "restart"
	StrategyDegrade  Strategy = "degrade"
	StrategyIsolate  Strategy = "isolate"
	StrategyFailover Strategy = "failover"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRestart, StrategyDegrade, StrategyIsolate, StrategyFailover:
		return true
	}
	return false
}

// WildcardService matches any service in plan lookups.
const WildcardService = "*"

// UserImpact classifies how visible a recovery plan is to end users.
type UserImpact string

const (
	ImpactNone   UserImpact = "none"
	ImpactLow    UserImpact = "low"
	ImpactMedium UserImpact = "medium"
	ImpactHigh   UserImpact = "high"
)

// StepTarget carries the service a step acts on. Handle is the registered
// service object (may be nil) and Checker its health-check capability, if any.
type StepTarget struct {
	Service string
	Handle  any
	Checker HealthChecker
}

// StepFunc is a single idempotent recovery action. It must observe ctx
// cancellation; a func that does not is treated as timed out by the executor.
type StepFunc func(ctx context.Context, target StepTarget) error

// RecoveryStep is one ordered step of a recovery plan.
type RecoveryStep struct {
	Name        string
	Description string
	Action      StepFunc
	Verify      StepFunc // optional, must also succeed for the attempt to count
	Rollback    StepFunc // optional, best-effort on step failure
	Timeout     time.Duration
	Retries     int // extra attempts after the first
}

// BackoffKind selects the inter-retry delay curve.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy is pure data consumed by the executor. MaxRetries is the
// per-step retry budget for steps that declare no Retries of their own.
type RetryPolicy struct {
	MaxRetries int
	Backoff    BackoffKind
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// RecoveryPlan is an immutable named recovery procedure. Plans are registered
// once and never mutated afterwards.
type RecoveryPlan struct {
	ID                string
	Service           string // exact service name, or WildcardService
	Strategy          Strategy
	Priority          int
	EstimatedDuration time.Duration
	Impact            UserImpact
	Steps             []RecoveryStep
	RollbackSteps     []RecoveryStep // optional plan-level unwind, best-effort
	Timeout           time.Duration  // overall budget for the whole plan
	Retry             RetryPolicy
}
