// Package config defines the harness's YAML configuration file plus its
// defaults and validation, kept in the teacher's shape: a nested Config
// struct, DefaultConfig(), Load(path) with environment-variable expansion,
// Save(path), and Validate().
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the harness's full configuration.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Execution ExecutionConfig `yaml:"execution"`
	Reporting ReportingConfig `yaml:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FrameworkConfig contains general framework settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ExecutionConfig controls how tests and providers are invoked.
type ExecutionConfig struct {
	// Mode selects the fault guard: "inprocess" or "subprocess".
	Mode string `yaml:"mode"`
	// MessageBufferSize bounds a failure message's length, matching
	// ccheck.c's TEST_MESSAGE_SIZE.
	MessageBufferSize int `yaml:"message_buffer_size"`
	// FallbackVariantCount is used when a provider's size query returns 0,
	// matching ccheck.c's FALLBACK_VARIANT_COUNT.
	FallbackVariantCount int `yaml:"fallback_variant_count"`
	// WorkerTimeout bounds how long a subprocess-mode worker may run
	// before the parent gives up waiting on it and reports a timeout
	// failure for the test that was in flight.
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
	// MaxConcurrentWorkers caps how many tester modules run concurrently,
	// via a semaphore in pkg/runner. 0 means unlimited (one goroutine per
	// module, launched immediately).
	MaxConcurrentWorkers int `yaml:"max_concurrent_workers"`
}

// ReportingConfig controls human-facing report output.
type ReportingConfig struct {
	Color bool `yaml:"color"`
}

// MetricsConfig controls the optional Prometheus exposition server.
type MetricsConfig struct {
	// ListenAddr is the address to serve /metrics on, e.g. ":9146".
	// Empty disables the metrics server.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the harness's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "console",
		},
		Execution: ExecutionConfig{
			Mode:                 "subprocess",
			MessageBufferSize:    200,
			FallbackVariantCount: 50,
			WorkerTimeout:        30 * time.Second,
			MaxConcurrentWorkers: 0,
		},
		Reporting: ReportingConfig{
			Color: true,
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
	}
}

// Load loads configuration from a YAML file. An empty path means
// ./ccheck.yaml; a file that doesn't exist yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "ccheck.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	switch c.Execution.Mode {
	case "inprocess", "subprocess":
	default:
		return fmt.Errorf("execution.mode must be 'inprocess' or 'subprocess', got %q", c.Execution.Mode)
	}

	if c.Execution.MessageBufferSize < 1 {
		return fmt.Errorf("execution.message_buffer_size must be at least 1")
	}

	if c.Execution.FallbackVariantCount < 1 {
		return fmt.Errorf("execution.fallback_variant_count must be at least 1")
	}

	if c.Execution.MaxConcurrentWorkers < 0 {
		return fmt.Errorf("execution.max_concurrent_workers must not be negative")
	}

	return nil
}
