package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Built-in wildcard plans, one per strategy. Step actions probe the service
// handle for the matching capability and succeed as a logical no-op when the
// handle does not implement it.

const defaultStepTimeout = 10 * time.Second

func defaultRetry() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxRetries: 2,
		Backoff:    domain.BackoffExponential,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Jitter:     true,
	}
}

// Builtin returns the four built-in plans.
func Builtin() []domain.RecoveryPlan {
	return []domain.RecoveryPlan{
		restartPlan(),
		degradePlan(),
		isolatePlan(),
		failoverPlan(),
	}
}

// RegisterBuiltin installs the built-in plans into the catalog.
func (c *Catalog) RegisterBuiltin() error {
	for _, p := range Builtin() {
		if err := c.Register(p); err != nil {
			return err
		}
	}
	return nil
}

func restartPlan() domain.RecoveryPlan {
	return domain.RecoveryPlan{
		ID:                "restart_generic",
		Service:           domain.WildcardService,
		Strategy:          domain.StrategyRestart,
		Priority:          10,
		EstimatedDuration: 30 * time.Second,
		Impact:            domain.ImpactLow,
		Timeout:           time.Minute,
		Retry:             defaultRetry(),
		Steps: []domain.RecoveryStep{
			{
				Name:        "prepare",
				Description: "quiesce the service before restart",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
			{
				Name:        "stop",
				Description: "stop the service",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if r, ok := t.Handle.(domain.Restartable); ok {
						return r.StopService(ctx)
					}
					return nil
				},
				Rollback: func(ctx context.Context, t domain.StepTarget) error {
					if r, ok := t.Handle.(domain.Restartable); ok {
						return r.StartService(ctx)
					}
					return nil
				},
				Timeout: defaultStepTimeout,
				Retries: 1,
			},
			{
				Name:        "clear_resources",
				Description: "drop caches, pools and other reclaimable state",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if r, ok := t.Handle.(domain.ResourceClearer); ok {
						return r.ClearResources(ctx)
					}
					return nil
				},
				Timeout: defaultStepTimeout,
			},
			{
				Name:        "start",
				Description: "start the service",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if r, ok := t.Handle.(domain.Restartable); ok {
						return r.StartService(ctx)
					}
					return nil
				},
				Timeout: defaultStepTimeout,
				Retries: 2,
			},
			{
				Name:        "verify_health",
				Description: "confirm the service answers its health check",
				Action:      checkHealthAction,
				Timeout:     defaultStepTimeout,
				Retries:     2,
			},
		},
	}
}

func degradePlan() domain.RecoveryPlan {
	return domain.RecoveryPlan{
		ID:                "degrade_generic",
		Service:           domain.WildcardService,
		Strategy:          domain.StrategyDegrade,
		Priority:          20,
		EstimatedDuration: 20 * time.Second,
		Impact:            domain.ImpactMedium,
		Timeout:           time.Minute,
		Retry:             defaultRetry(),
		Steps: []domain.RecoveryStep{
			{
				Name:        "assess_options",
				Description: "determine which functionality can be shed",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
			{
				Name:        "apply_limits",
				Description: "switch the service into degraded mode",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if d, ok := t.Handle.(domain.Degradable); ok {
						return d.SetDegraded(ctx, true)
					}
					return nil
				},
				Rollback: func(ctx context.Context, t domain.StepTarget) error {
					if d, ok := t.Handle.(domain.Degradable); ok {
						return d.SetDegraded(ctx, false)
					}
					return nil
				},
				Timeout: defaultStepTimeout,
				Retries: 1,
			},
			{
				Name:        "disable_nonessential",
				Description: "shed non-essential features",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
			{
				Name:        "verify_degraded",
				Description: "confirm the service still answers in degraded mode",
				Action:      checkHealthAction,
				Timeout:     defaultStepTimeout,
				Retries:     1,
			},
		},
	}
}

func isolatePlan() domain.RecoveryPlan {
	return domain.RecoveryPlan{
		ID:                "isolate_generic",
		Service:           domain.WildcardService,
		Strategy:          domain.StrategyIsolate,
		Priority:          100, // reserved for the worst case
		EstimatedDuration: 15 * time.Second,
		Impact:            domain.ImpactHigh,
		Timeout:           45 * time.Second,
		Retry:             defaultRetry(),
		Steps: []domain.RecoveryStep{
			{
				Name:        "assess_impact",
				Description: "enumerate dependents before cutting the service off",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
			{
				Name:        "reroute_dependents",
				Description: "point dependents away from the failing service",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
			{
				Name:        "isolate",
				Description: "cut the service off from the rest of the system",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if i, ok := t.Handle.(domain.Isolatable); ok {
						return i.Isolate(ctx, true)
					}
					return nil
				},
				Rollback: func(ctx context.Context, t domain.StepTarget) error {
					if i, ok := t.Handle.(domain.Isolatable); ok {
						return i.Isolate(ctx, false)
					}
					return nil
				},
				Timeout: defaultStepTimeout,
				Retries: 1,
			},
			{
				Name:        "verify_stability",
				Description: "confirm the rest of the system is stable",
				Action:      noopAction,
				Timeout:     defaultStepTimeout,
			},
		},
	}
}

func failoverPlan() domain.RecoveryPlan {
	return domain.RecoveryPlan{
		ID:                "failover_generic",
		Service:           domain.WildcardService,
		Strategy:          domain.StrategyFailover,
		Priority:          30,
		EstimatedDuration: 2 * time.Minute, // longest of the built-ins
		Impact:            domain.ImpactMedium,
		Timeout:           3 * time.Minute,
		Retry:             defaultRetry(),
		Steps: []domain.RecoveryStep{
			{
				Name:        "identify_backup",
				Description: "confirm a standby exists",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if _, ok := t.Handle.(domain.FailoverCapable); ok {
						return nil
					}
					return fmt.Errorf("service %s has no failover capability", t.Service)
				},
				Timeout: defaultStepTimeout,
			},
			{
				Name:        "prepare_backup",
				Description: "warm the standby",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if f, ok := t.Handle.(domain.FailoverCapable); ok {
						return f.PrepareBackup(ctx)
					}
					return nil
				},
				Timeout: 30 * time.Second,
				Retries: 1,
			},
			{
				Name:        "transfer_state",
				Description: "move live state to the standby",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if f, ok := t.Handle.(domain.FailoverCapable); ok {
						return f.TransferState(ctx)
					}
					return nil
				},
				Timeout: time.Minute,
				Retries: 2,
			},
			{
				Name:        "activate_backup",
				Description: "promote the standby",
				Action: func(ctx context.Context, t domain.StepTarget) error {
					if f, ok := t.Handle.(domain.FailoverCapable); ok {
						return f.ActivateBackup(ctx)
					}
					return nil
				},
				Timeout: 30 * time.Second,
			},
			{
				Name:        "verify_failover",
				Description: "confirm the promoted standby answers health checks",
				Action:      checkHealthAction,
				Timeout:     defaultStepTimeout,
				Retries:     2,
			},
		},
	}
}

func noopAction(context.Context, domain.StepTarget) error { return nil }

func checkHealthAction(ctx context.Context, t domain.StepTarget) error {
	if t.Checker == nil {
		return nil
	}
	return t.Checker.CheckHealth(ctx)
}
