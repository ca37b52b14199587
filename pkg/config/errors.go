// Package config provides configuration loading and validation for the price engine.
package config

import "errors"

var (
	// ErrSymbolRequired indicates that symbol must be specified.
	ErrSymbolRequired = errors.New("symbol must be specified")
	// ErrInvalidBucketInterval indicates a non-positive bucket interval.
	ErrInvalidBucketInterval = errors.New("bucket_interval must be positive")
	// ErrInvalidStaleThreshold indicates that stale_threshold must be at least the bucket interval.
	ErrInvalidStaleThreshold = errors.New("stale_threshold must be at least bucket_interval")
	// ErrInvalidDownThreshold indicates that down_threshold must exceed stale_threshold.
	ErrInvalidDownThreshold = errors.New("down_threshold must exceed stale_threshold")
	// ErrInvalidRetentionWindow indicates that retention_window must cover the stale lookback.
	ErrInvalidRetentionWindow = errors.New("retention_window must be at least stale_threshold")
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrDuplicateSourceName indicates that two sources share a name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrNegativeWeight indicates that source weight must be >= 0.
	ErrNegativeWeight = errors.New("weight must be >= 0")
	// ErrWeightSum indicates that enabled source weights must sum to 1.0.
	ErrWeightSum = errors.New("enabled source weights must sum to 1.0")
	// ErrUnknownStorageDriver indicates that the storage driver is unknown.
	ErrUnknownStorageDriver = errors.New("unknown storage driver")
	// ErrDSNRequired indicates that the postgres driver needs a DSN.
	ErrDSNRequired = errors.New("storage dsn must be specified for postgres driver")
	// ErrCacheAddrRequired indicates that the cache address is missing.
	ErrCacheAddrRequired = errors.New("cache addr must be specified when cache is enabled")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
