package config

import (
	"time"

	historypg "github.com/vietddude/remedy/internal/infra/history/postgres"
	historyredis "github.com/vietddude/remedy/internal/infra/history/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Selector SelectorConfig  `yaml:"selector"`
	Recovery RecoveryConfig  `yaml:"recovery"`
	History  HistoryConfig   `yaml:"history"`
	Services []ServiceConfig `yaml:"services"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MonitorConfig holds health-check loop settings.
type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SelectorConfig holds strategy selection thresholds.
type SelectorConfig struct {
	IsolateFailures  int     `yaml:"isolate_failures"`
	RestartFailures  int     `yaml:"restart_failures"`
	DegradeErrorRate float64 `yaml:"degrade_error_rate"`
}

// RecoveryConfig holds scheduler and health classification settings.
type RecoveryConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	DispatchInterval  time.Duration `yaml:"dispatch_interval"`
	Retention         time.Duration `yaml:"retention"`
	DegradedFailures  int           `yaml:"degraded_failures"`
	UnhealthyFailures int           `yaml:"unhealthy_failures"`
	FailedFailures    int           `yaml:"failed_failures"`
}

// HistoryConfig selects and configures the execution history backend.
type HistoryConfig struct {
	Backend  string              `yaml:"backend"` // memory, postgres, redis
	Capacity int                 `yaml:"capacity"`
	Postgres historypg.Config    `yaml:"postgres"`
	Redis    historyredis.Config `yaml:"redis"`
}

// ServiceConfig declares one monitored service.
type ServiceConfig struct {
	Name           string      `yaml:"name"`
	Dependencies   []string    `yaml:"dependencies"`
	FailoverTarget string      `yaml:"failover_target"`
	Check          CheckConfig `yaml:"check"`
}

// CheckConfig configures the health-check adapter for a service.
type CheckConfig struct {
	Type    string        `yaml:"type"` // http, grpc, redis, postgres
	URL     string        `yaml:"url"`
	Service string        `yaml:"service"` // grpc health service name
	Timeout time.Duration `yaml:"timeout"`
}
