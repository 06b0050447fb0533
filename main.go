// Demo: two in-process services, one of which starts failing its health
// checks and is brought back automatically by the restart plan.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/remedy/internal/control"
	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/recovery/monitor"
	"github.com/vietddude/remedy/internal/recovery/scheduler"
)

// demoCache simulates a cache that falls over and can be restarted.
type demoCache struct {
	mu      sync.Mutex
	healthy bool
}

func (c *demoCache) CheckHealth(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.healthy {
		return fmt.Errorf("cache: connection refused")
	}
	return nil
}

func (c *demoCache) StopService(context.Context) error {
	slog.Info("demo cache stopping")
	return nil
}

func (c *demoCache) StartService(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = true
	slog.Info("demo cache started")
	return nil
}

func (c *demoCache) breakIt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = false
}

// demoAPI stays healthy throughout.
type demoAPI struct{}

func (demoAPI) CheckHealth(context.Context) error { return nil }

func main() {
	stylelog.InitDefault(&tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	})

	engine, err := control.New(control.Config{
		Monitor:   monitor.Config{Interval: 500 * time.Millisecond, CheckTimeout: time.Second},
		Scheduler: scheduler.Config{DispatchInterval: 200 * time.Millisecond},
	})
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	cache := &demoCache{healthy: true}
	if err := engine.Register("cache", cache, nil); err != nil {
		slog.Error("failed to register cache", "error", err)
		os.Exit(1)
	}
	if err := engine.Register("api", demoAPI{}, []string{"cache"}); err != nil {
		slog.Error("failed to register api", "error", err)
		os.Exit(1)
	}

	engine.Subscribe(domain.EventHealthChanged, func(ev domain.Event) {
		slog.Info("health changed", "service", ev.Service, "from", ev.OldStatus, "to", ev.NewStatus)
	})
	engine.Subscribe(domain.EventServiceRecovered, func(ev domain.Event) {
		slog.Info("service recovered", "service", ev.Service, "execution_id", ev.ExecutionID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		slog.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	slog.Info("breaking the demo cache")
	cache.breakIt()

	// Three failed checks reach the unhealthy threshold, the restart plan
	// runs and the cache comes back.
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		h, _ := engine.GetServiceHealth("cache")
		if h.RecoveryCount > 0 && h.Status == domain.StatusHealthy {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	h, _ := engine.GetServiceHealth("cache")
	slog.Info("demo finished",
		"status", h.Status,
		"recoveries", h.RecoveryCount,
		"consecutive_failures", h.ConsecutiveFailures,
	)

	stats := engine.GetStatistics()
	slog.Info("statistics",
		"services", stats.Services,
		"total", stats.TotalRecoveries,
		"successful", stats.SuccessfulRecoveries,
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := engine.Stop(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
