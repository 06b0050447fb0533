package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 10 * time.Second
	}
	if cfg.Monitor.CheckTimeout == 0 {
		cfg.Monitor.CheckTimeout = 5 * time.Second
	}
	if cfg.Selector.IsolateFailures == 0 {
		cfg.Selector.IsolateFailures = 5
	}
	if cfg.Selector.RestartFailures == 0 {
		cfg.Selector.RestartFailures = 3
	}
	if cfg.Selector.DegradeErrorRate == 0 {
		cfg.Selector.DegradeErrorRate = 0.5
	}
	if cfg.Recovery.MaxConcurrent == 0 {
		cfg.Recovery.MaxConcurrent = 3
	}
	if cfg.Recovery.DispatchInterval == 0 {
		cfg.Recovery.DispatchInterval = time.Second
	}
	if cfg.Recovery.Retention == 0 {
		cfg.Recovery.Retention = time.Minute
	}
	if cfg.Recovery.DegradedFailures == 0 {
		cfg.Recovery.DegradedFailures = 1
	}
	if cfg.Recovery.UnhealthyFailures == 0 {
		cfg.Recovery.UnhealthyFailures = 3
	}
	if cfg.Recovery.FailedFailures == 0 {
		cfg.Recovery.FailedFailures = 5
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = "memory"
	}
	for i := range cfg.Services {
		if cfg.Services[i].Check.Timeout == 0 {
			cfg.Services[i].Check.Timeout = 5 * time.Second
		}
	}
}
