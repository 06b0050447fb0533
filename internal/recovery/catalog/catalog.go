// Package catalog stores reusable, strategy-tagged recovery plans.
// Plans are immutable after registration; lookup is exact-service-first with
// a wildcard fallback.
package catalog

import (
	"fmt"
	"sync"

	"github.com/vietddude/remedy/internal/core/domain"
)

type key struct {
	service  string
	strategy domain.Strategy
}

// Catalog is the synchronized plan store.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]domain.RecoveryPlan
	index map[key]string // (service|"*", strategy) -> plan id
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		plans: make(map[string]domain.RecoveryPlan),
		index: make(map[key]string),
	}
}

// Register validates and stores a plan. A plan for the same
// (service, strategy) pair replaces the previous index entry.
func (c *Catalog) Register(p domain.RecoveryPlan) error {
	if p.ID == "" {
		return fmt.Errorf("recovery plan must have an id")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("recovery plan %s must have at least one step", p.ID)
	}
	if !p.Strategy.Valid() {
		return fmt.Errorf("recovery plan %s has unknown strategy %q", p.ID, p.Strategy)
	}
	if p.Service == "" {
		p.Service = domain.WildcardService
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[p.ID] = p
	c.index[key{service: p.Service, strategy: p.Strategy}] = p.ID
	return nil
}

// Lookup resolves a plan for the service and strategy: an exact service match
// wins over the wildcard entry.
func (c *Catalog) Lookup(service string, s domain.Strategy) (domain.RecoveryPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id, ok := c.index[key{service: service, strategy: s}]; ok {
		return copyPlan(c.plans[id]), true
	}
	if id, ok := c.index[key{service: domain.WildcardService, strategy: s}]; ok {
		return copyPlan(c.plans[id]), true
	}
	return domain.RecoveryPlan{}, false
}

// Get returns a plan by id.
func (c *Catalog) Get(id string) (domain.RecoveryPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[id]
	if !ok {
		return domain.RecoveryPlan{}, false
	}
	return copyPlan(p), true
}

// All returns every registered plan keyed by id.
func (c *Catalog) All() map[string]domain.RecoveryPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.RecoveryPlan, len(c.plans))
	for id, p := range c.plans {
		out[id] = copyPlan(p)
	}
	return out
}

// HasExact reports whether a plan is registered for exactly this service and
// strategy (no wildcard fallback).
func (c *Catalog) HasExact(service string, s domain.Strategy) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[key{service: service, strategy: s}]
	return ok
}

func copyPlan(p domain.RecoveryPlan) domain.RecoveryPlan {
	out := p
	out.Steps = append([]domain.RecoveryStep(nil), p.Steps...)
	out.RollbackSteps = append([]domain.RecoveryStep(nil), p.RollbackSteps...)
	return out
}
