// Package config provides configuration loading for reviewd.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/gateway"
	"github.com/fyrsmithlabs/reviewd/internal/http"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/task"
	"github.com/fyrsmithlabs/reviewd/internal/telemetry"
)

// Config is the root configuration for the reviewd daemon.
type Config struct {
	Server    http.Config       `koanf:"server"`
	Store     store.Config      `koanf:"store"`
	Gateway   gateway.Config    `koanf:"gateway"`
	Events    events.Config     `koanf:"events"`
	Runner    task.RunnerConfig `koanf:"runner"`
	Logging   logging.Config    `koanf:"logging"`
	Telemetry telemetry.Config  `koanf:"telemetry"`
}

// applyDefaults fills zero values with each section's defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = http.DefaultConfig().Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = http.DefaultConfig().Port
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath()
	}

	gw := gateway.DefaultConfig()
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = gw.Timeout
	}
	if cfg.Gateway.RequestsPerSecond == 0 {
		cfg.Gateway.RequestsPerSecond = gw.RequestsPerSecond
	}
	if cfg.Gateway.MaxTokens == 0 {
		cfg.Gateway.MaxTokens = gw.MaxTokens
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = events.DefaultConfig().SubjectPrefix
	}

	runner := task.DefaultRunnerConfig()
	if cfg.Runner.PollInterval == 0 {
		cfg.Runner.PollInterval = runner.PollInterval
	}
	if cfg.Runner.Workers == 0 {
		cfg.Runner.Workers = runner.Workers
	}

	logDefaults := logging.NewDefaultConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logDefaults.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logDefaults.Format
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = logDefaults.Fields
	}
	if !cfg.Logging.Redaction.Enabled && cfg.Logging.Redaction.Fields == nil {
		cfg.Logging.Redaction = logDefaults.Redaction
	}

	telDefaults := telemetry.NewDefaultConfig()
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = telDefaults.Endpoint
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = telDefaults.Protocol
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = telDefaults.ServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = telDefaults.ServiceVersion
	}
	if cfg.Telemetry.Sampling.Rate == 0 {
		cfg.Telemetry.Sampling = telDefaults.Sampling
	}
	if cfg.Telemetry.Metrics.ExportInterval == 0 {
		cfg.Telemetry.Metrics = telDefaults.Metrics
	}
	if cfg.Telemetry.Shutdown.Timeout == 0 {
		cfg.Telemetry.Shutdown = telDefaults.Shutdown
	}
	if !cfg.Telemetry.Enabled {
		cfg.Telemetry.Insecure = telDefaults.Insecure
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Runner.Workers <= 0 {
		return fmt.Errorf("runner.workers must be positive, got %d", c.Runner.Workers)
	}
	if c.Runner.PollInterval <= 0 {
		return fmt.Errorf("runner.poll_interval must be positive")
	}
	// Gateway is optional: an empty base URL disables the model path. When
	// set, a model name is required too.
	if c.Gateway.BaseURL != "" && c.Gateway.Model == "" {
		return fmt.Errorf("gateway.model is required when gateway.base_url is set")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

// defaultStorePath places the database under the user's data directory.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "reviewd.db"
	}
	return filepath.Join(home, ".local", "share", "reviewd", "reviewd.db")
}
