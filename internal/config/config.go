// Package config manages application configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the idempotency store and its migrations. An empty
// MigrationsPath selects the SQL files embedded in the binary.
type StoreConfig struct {
	DSN            string `yaml:"dsn"`
	MigrationsPath string `yaml:"migrationsPath"`
}

// TelemetryConfig controls the OpenTelemetry exporter.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

// RetryConfig overrides the default delivery retry policy.
type RetryConfig struct {
	MaxRetries      int     `yaml:"maxRetries"`
	BackoffMs       []int64 `yaml:"backoffMs"`
	DeadLetterTopic string  `yaml:"deadLetterTopic"`
}

// BackoffDurations converts the millisecond ladder into durations.
func (r RetryConfig) BackoffDurations() []time.Duration {
	if len(r.BackoffMs) == 0 {
		return nil
	}
	out := make([]time.Duration, 0, len(r.BackoffMs))
	for _, ms := range r.BackoffMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

// ReconciliationConfig sets batch comparison and replay defaults.
type ReconciliationConfig struct {
	AmountToleranceMicros int64   `yaml:"amountToleranceMicros"`
	MaxReplayJobs         int     `yaml:"maxReplayJobs"`
	ReplayRatePerSec      float64 `yaml:"replayRatePerSec"`
}

// Config is the pipeline configuration tree loaded from defaults and overrides.
type Config struct {
	Environment    string               `yaml:"environment"`
	Store          StoreConfig          `yaml:"store"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Retry          RetryConfig          `yaml:"retry"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

// Default returns the baseline configuration applied before file overrides.
func Default() Config {
	return Config{
		Environment: "development",
		Store: StoreConfig{
			DSN:            "",
			MigrationsPath: "",
		},
		Telemetry: TelemetryConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4318",
			OTLPInsecure: false,
		},
		Retry: RetryConfig{
			MaxRetries:      0,
			BackoffMs:       nil,
			DeadLetterTopic: "",
		},
		Reconciliation: ReconciliationConfig{
			AmountToleranceMicros: 0,
			MaxReplayJobs:         500,
			ReplayRatePerSec:      0,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the binaries cannot run with.
func (c Config) Validate() error {
	if c.Reconciliation.AmountToleranceMicros < 0 {
		return fmt.Errorf("reconciliation.amountToleranceMicros must be >= 0")
	}
	if c.Reconciliation.MaxReplayJobs < 0 {
		return fmt.Errorf("reconciliation.maxReplayJobs must be >= 0")
	}
	if c.Reconciliation.ReplayRatePerSec < 0 {
		return fmt.Errorf("reconciliation.replayRatePerSec must be >= 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries must be >= 0")
	}
	for _, ms := range c.Retry.BackoffMs {
		if ms <= 0 {
			return fmt.Errorf("retry.backoffMs entries must be positive, got %d", ms)
		}
	}
	return nil
}
