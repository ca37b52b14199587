// Package config provides configuration loading and validation for the price engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.BucketInterval.ToDuration() == 0 {
		cfg.BucketInterval = Duration(time.Second)
	}
	// Liveness thresholds default relative to the bucket interval:
	// stale after 2 missed buckets, down after 10.
	if cfg.StaleThreshold.ToDuration() == 0 {
		cfg.StaleThreshold = Duration(2 * cfg.BucketInterval.ToDuration())
	}
	if cfg.DownThreshold.ToDuration() == 0 {
		cfg.DownThreshold = Duration(10 * cfg.BucketInterval.ToDuration())
	}
	if cfg.RetentionWindow.ToDuration() == 0 {
		cfg.RetentionWindow = Duration(60 * cfg.BucketInterval.ToDuration())
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.AppendRetries == 0 {
		cfg.Storage.AppendRetries = 3
	}
	if cfg.Storage.RetryBackoff.ToDuration() == 0 {
		cfg.Storage.RetryBackoff = Duration(100 * time.Millisecond)
	}
	if cfg.Storage.MaxBacklog == 0 {
		cfg.Storage.MaxBacklog = 1024
	}
	if cfg.Storage.Cache.Enabled && cfg.Storage.Cache.TTL.ToDuration() == 0 {
		cfg.Storage.Cache.TTL = Duration(60 * time.Second)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// EnabledWeights returns the configured weight per enabled source name.
func (c *Config) EnabledWeights() map[string]float64 {
	weights := make(map[string]float64)
	for _, src := range c.Sources {
		if src.Enabled {
			weights[src.Name] = src.Weight
		}
	}
	return weights
}

// GetString retrieves a string value from the source configuration.
func (sc *SourceConfig) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetInt retrieves an integer from source config.
func (sc *SourceConfig) GetInt(key string, defaultValue int) int {
	if val, ok := sc.Config[key]; ok {
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean from source config.
func (sc *SourceConfig) GetBool(key string, defaultValue bool) bool {
	if val, ok := sc.Config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}
