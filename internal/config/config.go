// Package config provides unified configuration for the Tessera write
// engine and its CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tessera-db/tessera/pkg/types"
)

// Config holds the engine configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Execution configuration
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
}

// ExecutionConfig holds statement execution defaults.
type ExecutionConfig struct {
	// DefaultConsistency is used when a statement names no consistency level
	DefaultConsistency types.ConsistencyLevel `json:"default_consistency" yaml:"default_consistency"`

	// SerialConsistency orders CAS rounds: SERIAL or LOCAL_SERIAL
	SerialConsistency types.ConsistencyLevel `json:"serial_consistency" yaml:"serial_consistency"`

	// RequestTimeout bounds one statement execution
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tessera",
		Execution: ExecutionConfig{
			DefaultConsistency: types.ConsistencyQuorum,
			SerialConsistency:  types.ConsistencySerial,
			RequestTimeout:     10 * time.Second,
		},
	}
}

// StorePath returns the path to the local store database.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "tessera.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if !c.Execution.DefaultConsistency.IsValid() || c.Execution.DefaultConsistency.IsSerial() {
		return fmt.Errorf("invalid default consistency: %s", c.Execution.DefaultConsistency)
	}
	if !c.Execution.SerialConsistency.IsSerial() {
		return fmt.Errorf("invalid serial consistency: %s (must be SERIAL or LOCAL_SERIAL)", c.Execution.SerialConsistency)
	}
	if c.Execution.RequestTimeout <= 0 {
		return fmt.Errorf("execution.request_timeout must be positive, got %s", c.Execution.RequestTimeout)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TESSERA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TESSERA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TESSERA_DEFAULT_CONSISTENCY"); v != "" {
		cfg.Execution.DefaultConsistency = types.ConsistencyLevel(v)
	}
	if v := os.Getenv("TESSERA_SERIAL_CONSISTENCY"); v != "" {
		cfg.Execution.SerialConsistency = types.ConsistencyLevel(v)
	}
	if v := os.Getenv("TESSERA_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Execution.RequestTimeout = d
		}
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.DataDir, err)
	}
	return nil
}
