// Package control wires the registry, monitor, catalog, selector, scheduler
// and executor into one engine and exposes the public API.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/infra/history"
	"github.com/vietddude/remedy/internal/infra/history/memory"
	"github.com/vietddude/remedy/internal/recovery/catalog"
	"github.com/vietddude/remedy/internal/recovery/executor"
	"github.com/vietddude/remedy/internal/recovery/monitor"
	"github.com/vietddude/remedy/internal/recovery/notify"
	"github.com/vietddude/remedy/internal/recovery/registry"
	"github.com/vietddude/remedy/internal/recovery/scheduler"
	"github.com/vietddude/remedy/internal/recovery/strategy"
	"github.com/vietddude/remedy/internal/server"
)

// Config holds engine settings. Zero values select defaults; a nil History
// falls back to the in-memory store and a nil Notifier to the log notifier.
type Config struct {
	Thresholds domain.Thresholds
	Monitor    monitor.Config
	Selector   strategy.Config
	Scheduler  scheduler.Config
	ServerPort int // 0 disables the HTTP server
	History    history.Store
	Notifier   notify.Notifier
	Reporter   monitor.ErrorReporter
	Logger     *slog.Logger
}

// notifierHolder lets the user notifier be swapped after construction.
type notifierHolder struct {
	mu sync.RWMutex
	n  notify.Notifier
}

func (h *notifierHolder) Notify(ctx context.Context, msg domain.Notification) error {
	h.mu.RLock()
	n := h.n
	h.mu.RUnlock()
	if n == nil {
		return nil
	}
	return n.Notify(ctx, msg)
}

func (h *notifierHolder) set(n notify.Notifier) {
	h.mu.Lock()
	h.n = n
	h.mu.Unlock()
}

// reporterHolder lets the error reporter be swapped after construction.
type reporterHolder struct {
	mu sync.RWMutex
	r  monitor.ErrorReporter
}

func (h *reporterHolder) ReportCheckError(service string, err error) {
	h.mu.RLock()
	r := h.r
	h.mu.RUnlock()
	if r != nil {
		r.ReportCheckError(service, err)
	}
}

func (h *reporterHolder) set(r monitor.ErrorReporter) {
	h.mu.Lock()
	h.r = r
	h.mu.Unlock()
}

// Engine is the recovery engine facade.
type Engine struct {
	reg      *registry.Registry
	cat      *catalog.Catalog
	sel      *strategy.Selector
	sched    *scheduler.Scheduler
	mon      *monitor.Monitor
	bus      *notify.Bus
	history  history.Store
	httpSrv  *server.Server
	notifier *notifierHolder
	reporter *reporterHolder
	log      *slog.Logger

	runMu  sync.Mutex
	cancel context.CancelFunc
}

// New creates an engine with the built-in plans installed.
func New(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	thresholds := cfg.Thresholds
	if thresholds == (domain.Thresholds{}) {
		thresholds = domain.DefaultThresholds()
	}
	selectorCfg := cfg.Selector
	if selectorCfg == (strategy.Config{}) {
		selectorCfg = strategy.DefaultConfig()
	}
	hist := cfg.History
	if hist == nil {
		hist = memory.New(0)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}

	e := &Engine{
		reg:      registry.New(thresholds),
		cat:      catalog.New(),
		sched:    scheduler.New(cfg.Scheduler, log),
		bus:      notify.NewBus(),
		history:  hist,
		notifier: &notifierHolder{n: notifier},
		reporter: &reporterHolder{r: cfg.Reporter},
		log:      log,
	}
	if err := e.cat.RegisterBuiltin(); err != nil {
		return nil, fmt.Errorf("failed to install built-in plans: %w", err)
	}

	e.sel = strategy.New(selectorCfg, e)
	e.sched.SetRunner(executor.New(e.reg, e.bus, e.notifier, hist, log))
	e.mon = monitor.New(e.reg, e.autoTrigger, e.bus, e.reporter, cfg.Monitor, log)

	if cfg.ServerPort > 0 {
		e.httpSrv = server.New(e, cfg.ServerPort)
	}
	return e, nil
}

// Start launches the health-check loop, the dispatch loop and the HTTP
// server. It returns immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel != nil {
		return fmt.Errorf("engine already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	go e.mon.Start(runCtx)
	go e.sched.Start(runCtx)
	if e.httpSrv != nil {
		go func() {
			if err := e.httpSrv.Start(); err != nil {
				e.log.Error("HTTP server failed", "error", err)
			}
		}()
	}

	e.log.Info("engine started")
	return nil
}

// Stop cancels the background loops and shuts the HTTP server down.
func (e *Engine) Stop(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.log.Info("stopping engine")

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if err := e.history.Close(); err != nil {
		e.log.Warn("failed to close history store", "error", err)
	}
	if e.httpSrv != nil {
		return e.httpSrv.Stop(ctx)
	}
	return nil
}

// ===== Service registry =====

// Register adds a service to the monitored set.
func (e *Engine) Register(name string, svc any, dependencies []string) error {
	return e.reg.Register(name, svc, dependencies)
}

// Unregister removes a service.
func (e *Engine) Unregister(name string) {
	e.reg.Unregister(name)
}

// SetFailoverTarget declares a standby for the service.
func (e *Engine) SetFailoverTarget(service, target string) bool {
	return e.reg.SetFailoverTarget(service, target)
}

// SetMetadata attaches a free-form key/value to the service record.
func (e *Engine) SetMetadata(service, key, value string) bool {
	return e.reg.SetMetadata(service, key, value)
}

// ForceServiceStatus overrides the derived status for one check tick.
func (e *Engine) ForceServiceStatus(service string, status domain.ServiceStatus) bool {
	return e.reg.ForceStatus(service, status)
}

// GetServiceHealth returns a snapshot of one service's health record.
func (e *Engine) GetServiceHealth(service string) (domain.ServiceHealth, bool) {
	return e.reg.Get(service)
}

// GetAllServiceHealth returns snapshots of every health record.
func (e *Engine) GetAllServiceHealth() map[string]domain.ServiceHealth {
	return e.reg.GetAll()
}

// ===== Plans =====

// RegisterRecoveryPlan installs a custom plan. Service-specific plans shadow
// the built-in wildcard plan of the same strategy.
func (e *Engine) RegisterRecoveryPlan(plan domain.RecoveryPlan) error {
	return e.cat.Register(plan)
}

// GetRecoveryPlans returns every installed plan, ordered by id.
func (e *Engine) GetRecoveryPlans() []domain.RecoveryPlan {
	all := e.cat.All()
	out := make([]domain.RecoveryPlan, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasFailoverTarget implements strategy.FailoverProber. A standby exists when
// the registry names one or a service-specific failover plan is installed.
func (e *Engine) HasFailoverTarget(service string) bool {
	if h, ok := e.reg.Get(service); ok && h.FailoverTarget != "" {
		return true
	}
	return e.cat.HasExact(service, domain.StrategyFailover)
}

// ===== Recovery =====

// TriggerRecovery starts (or joins) a recovery for the service. An empty
// strategy lets the selector pick one from the current health snapshot.
// created is false when an active execution was joined instead.
func (e *Engine) TriggerRecovery(service, cause string, strat domain.Strategy) (domain.RecoveryExecution, bool, error) {
	health, ok := e.reg.Get(service)
	if !ok {
		return domain.RecoveryExecution{}, false, fmt.Errorf("unknown service %q", service)
	}

	if strat == "" {
		strat = e.sel.Select(health)
	} else if !strat.Valid() {
		return domain.RecoveryExecution{}, false, fmt.Errorf("unknown strategy %q", strat)
	}

	plan, ok := e.cat.Lookup(service, strat)
	if !ok {
		return domain.RecoveryExecution{}, false, fmt.Errorf("no %s plan for service %q", strat, service)
	}

	// The recovering mark must land before the execution becomes
	// dispatchable: a fast runner can otherwise finish and restore the
	// derived status before a late mark, leaving the service recovering
	// with no execution to clear it.
	e.reg.MarkRecovering(service)
	id, created := e.sched.Trigger(plan, service, cause, strat)
	snap, _ := e.sched.Get(id)
	return snap, created, nil
}

// CancelRecovery cancels an execution. Pending executions are cancelled
// immediately and the service's derived status is restored; running ones are
// asked to stop cooperatively and finish on their own.
func (e *Engine) CancelRecovery(id string) (domain.RecoveryExecution, bool) {
	snap, ok := e.sched.Cancel(id)
	if !ok {
		return domain.RecoveryExecution{}, false
	}
	if snap.Status == domain.ExecutionCancelled {
		e.reg.FinishRecovery(snap.Service, false)
	}
	return snap, true
}

// GetRecovery returns one execution snapshot.
func (e *Engine) GetRecovery(id string) (domain.RecoveryExecution, bool) {
	return e.sched.Get(id)
}

// GetActiveRecoveries returns pending and running executions, oldest first.
func (e *Engine) GetActiveRecoveries() []domain.RecoveryExecution {
	active := e.sched.Active()
	out := make([]domain.RecoveryExecution, 0, len(active))
	for _, snap := range active {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// RecentRecoveries returns finished executions from the history store.
func (e *Engine) RecentRecoveries(ctx context.Context, limit int) ([]domain.RecoveryExecution, error) {
	return e.history.Recent(ctx, limit)
}

// GetStatistics returns an aggregate view over services and recoveries. It is
// computed entirely from the registry and the scheduler's retained executions.
func (e *Engine) GetStatistics() domain.Statistics {
	stats := domain.Statistics{ByStatus: make(map[domain.ServiceStatus]int)}
	for _, h := range e.reg.GetAll() {
		stats.Services++
		stats.ByStatus[h.Status]++
		stats.SuccessfulRecoveries += h.RecoveryCount
	}
	for _, snap := range e.sched.All() {
		switch snap.Status {
		case domain.ExecutionPending:
			stats.QueuedRecoveries++
			stats.ActiveRecoveries++
		case domain.ExecutionRunning:
			stats.ActiveRecoveries++
		case domain.ExecutionFailed:
			stats.FailedRecoveries++
		}
	}
	stats.TotalRecoveries = stats.SuccessfulRecoveries + stats.FailedRecoveries
	return stats
}

// Subscribe registers a handler for engine events.
func (e *Engine) Subscribe(t domain.EventType, h notify.Handler) {
	e.bus.Subscribe(t, h)
}

// SetNotifier replaces the user notifier. A nil notifier silences
// notifications.
func (e *Engine) SetNotifier(n notify.Notifier) {
	e.notifier.set(n)
}

// SetErrorReporter replaces the health-check error reporter.
func (e *Engine) SetErrorReporter(r monitor.ErrorReporter) {
	e.reporter.set(r)
}

// RunHealthChecks runs one check round and one dispatch pass synchronously.
// It lets callers and tests drive the engine without the tickers.
func (e *Engine) RunHealthChecks(ctx context.Context) {
	e.mon.CheckAll(ctx)
	e.sched.Dispatch(ctx)
}

// autoTrigger is the monitor's recovery callback.
func (e *Engine) autoTrigger(service, cause string) {
	if _, _, err := e.TriggerRecovery(service, cause, ""); err != nil {
		e.log.Error("automatic recovery trigger failed", "service", service, "error", err)
	}
}

// AwaitIdle blocks until no execution is pending or running, or the timeout
// elapses. Intended for demos and tests.
func (e *Engine) AwaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(e.sched.Active()) == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
