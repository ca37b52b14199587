package config

import (
	"fmt"
	"math"
	"strings"
)

// weightTolerance is the allowed deviation when checking that weights sum to 1.0.
const weightTolerance = 1e-9

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return Validate(c)
}

// Validate checks configuration for errors. Any error returned here is fatal
// at startup; the engine must not start with a bad configuration.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return fmt.Errorf("%w", ErrSymbolRequired)
	}

	if err := validateIntervals(cfg); err != nil {
		return err
	}

	if err := validateSources(cfg); err != nil {
		return err
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateIntervals(cfg *Config) error {
	bucket := cfg.BucketInterval.ToDuration()
	stale := cfg.StaleThreshold.ToDuration()
	down := cfg.DownThreshold.ToDuration()
	retention := cfg.RetentionWindow.ToDuration()

	if bucket <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBucketInterval, bucket)
	}
	if stale < bucket {
		return fmt.Errorf("%w: stale=%s bucket=%s", ErrInvalidStaleThreshold, stale, bucket)
	}
	if down <= stale {
		return fmt.Errorf("%w: down=%s stale=%s", ErrInvalidDownThreshold, down, stale)
	}
	if retention < stale {
		return fmt.Errorf("%w: retention=%s stale=%s", ErrInvalidRetentionWindow, retention, stale)
	}

	return nil
}

func validateSources(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("%w", ErrNoSourcesConfigured)
	}

	seen := make(map[string]bool)
	enabled := 0
	weightSum := 0.0

	for i, source := range cfg.Sources {
		if source.Type == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceTypeRequired)
		}
		if source.Name == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceNameRequired)
		}
		if seen[source.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceName, source.Name)
		}
		seen[source.Name] = true

		if source.Weight < 0 {
			return fmt.Errorf("source %s: %w: %f", source.Name, ErrNegativeWeight, source.Weight)
		}

		if source.Enabled {
			enabled++
			weightSum += source.Weight
		}
	}

	if enabled == 0 {
		return fmt.Errorf("%w", ErrNoSourcesEnabled)
	}

	if math.Abs(weightSum-1.0) > weightTolerance {
		return fmt.Errorf("%w: got %.12f", ErrWeightSum, weightSum)
	}

	return nil
}

func validateStorage(cfg *StorageConfig) error {
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		if cfg.DSN == "" {
			return fmt.Errorf("%w", ErrDSNRequired)
		}
	case "memory":
		// Nothing to check
	default:
		return fmt.Errorf("%w: %s (must be 'postgres' or 'memory')", ErrUnknownStorageDriver, cfg.Driver)
	}

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		return fmt.Errorf("%w", ErrCacheAddrRequired)
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
