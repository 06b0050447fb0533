package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/remedy/internal/core/config"
	"github.com/vietddude/remedy/internal/core/domain"
	"github.com/vietddude/remedy/internal/infra/checks"
	"github.com/vietddude/remedy/internal/infra/history"
	historymem "github.com/vietddude/remedy/internal/infra/history/memory"
	historypg "github.com/vietddude/remedy/internal/infra/history/postgres"
	historyredis "github.com/vietddude/remedy/internal/infra/history/redis"
	"github.com/vietddude/remedy/internal/recovery/monitor"
	"github.com/vietddude/remedy/internal/recovery/scheduler"
	"github.com/vietddude/remedy/internal/recovery/strategy"
)

// NewFromAppConfig builds an engine from a loaded configuration file:
// history backend, declared services and their health-check adapters.
func NewFromAppConfig(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Engine, error) {
	hist, err := newHistoryStore(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to init history store: %w", err)
	}

	engine, err := New(Config{
		Thresholds: domain.Thresholds{
			Degraded:  cfg.Recovery.DegradedFailures,
			Unhealthy: cfg.Recovery.UnhealthyFailures,
			Failed:    cfg.Recovery.FailedFailures,
		},
		Monitor: monitor.Config{
			Interval:     cfg.Monitor.Interval,
			CheckTimeout: cfg.Monitor.CheckTimeout,
		},
		Selector: strategy.Config{
			IsolateFailures:  cfg.Selector.IsolateFailures,
			RestartFailures:  cfg.Selector.RestartFailures,
			DegradeErrorRate: cfg.Selector.DegradeErrorRate,
		},
		Scheduler: scheduler.Config{
			MaxConcurrent:    cfg.Recovery.MaxConcurrent,
			DispatchInterval: cfg.Recovery.DispatchInterval,
			Retention:        cfg.Recovery.Retention,
		},
		ServerPort: cfg.Server.Port,
		History:    hist,
		Logger:     log,
	})
	if err != nil {
		_ = hist.Close()
		return nil, err
	}

	for _, svc := range cfg.Services {
		checker, err := newChecker(svc.Check)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		if err := engine.Register(svc.Name, checker, svc.Dependencies); err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		if svc.FailoverTarget != "" {
			engine.SetFailoverTarget(svc.Name, svc.FailoverTarget)
		}
	}
	return engine, nil
}

func newHistoryStore(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return historymem.New(cfg.Capacity), nil
	case "postgres":
		return historypg.New(ctx, cfg.Postgres)
	case "redis":
		return historyredis.New(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// newChecker builds the health-check adapter declared for a service. The
// adapter doubles as the service handle; real handles with recovery
// capabilities are registered through the API instead.
func newChecker(cfg config.CheckConfig) (domain.HealthChecker, error) {
	switch cfg.Type {
	case "http":
		return checks.NewHTTPCheck(cfg.URL, cfg.Timeout), nil
	case "grpc":
		return checks.NewGRPCCheck(cfg.URL, cfg.Service)
	case "redis":
		return checks.NewRedisCheck(cfg.URL)
	case "postgres":
		return checks.NewPostgresCheck(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown check type %q", cfg.Type)
	}
}
