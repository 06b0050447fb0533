// Package strategy maps a degraded service's health signal to a recovery
// strategy.
package strategy

import "github.com/vietddude/remedy/internal/core/domain"

// Config holds the selection thresholds. The defaults mirror long-standing
// heuristics and are deliberately configurable.
type Config struct {
	IsolateFailures  int     `yaml:"isolate_failures"`
	RestartFailures  int     `yaml:"restart_failures"`
	DegradeErrorRate float64 `yaml:"degrade_error_rate"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		IsolateFailures:  5,
		RestartFailures:  3,
		DegradeErrorRate: 0.5,
	}
}

// FailoverProber reports whether a standby exists for a service.
type FailoverProber interface {
	HasFailoverTarget(service string) bool
}

// Selector picks a strategy from a health snapshot. It is a pure function of
// its inputs; rule order is significant.
type Selector struct {
	cfg    Config
	prober FailoverProber
}

// New creates a selector. prober may be nil, which disables the failover arm.
func New(cfg Config, prober FailoverProber) *Selector {
	return &Selector{cfg: cfg, prober: prober}
}

// Select returns the strategy for the given health snapshot.
//
// Isolation is checked first: it has the largest blast radius and is reserved
// for the worst case. Degrade comes before restart because it is cheaper.
// Failover needs a standby most services lack, so it only fires when one is
// wired. Restart is the default.
func (s *Selector) Select(h domain.ServiceHealth) domain.Strategy {
	if h.Status == domain.StatusFailed && h.ConsecutiveFailures >= s.cfg.IsolateFailures {
		return domain.StrategyIsolate
	}
	if h.ErrorRate > s.cfg.DegradeErrorRate && h.Status != domain.StatusFailed {
		return domain.StrategyDegrade
	}
	if h.ConsecutiveFailures >= s.cfg.RestartFailures {
		return domain.StrategyRestart
	}
	if s.prober != nil && s.prober.HasFailoverTarget(h.Name) && h.Status == domain.StatusUnhealthy {
		return domain.StrategyFailover
	}
	return domain.StrategyRestart
}
