package config

import "time"

// Config is the root configuration structure
type Config struct {
	Symbol          string         `yaml:"symbol"`
	BucketInterval  Duration       `yaml:"bucket_interval"`
	StaleThreshold  Duration       `yaml:"stale_threshold"`
	DownThreshold   Duration       `yaml:"down_threshold"`
	RetentionWindow Duration       `yaml:"retention_window"`
	Sources         []SourceConfig `yaml:"sources"`
	Storage         StorageConfig  `yaml:"storage"`
	History         HistoryConfig  `yaml:"history"`
	Metrics         MetricsConfig  `yaml:"metrics"`
	Logging         LoggingConfig  `yaml:"logging"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Weight  float64                `yaml:"weight"`
	Config  map[string]interface{} `yaml:"config"`
}

// StorageConfig configures the series store
type StorageConfig struct {
	Driver        string      `yaml:"driver"` // "postgres" or "memory"
	DSN           string      `yaml:"dsn"`
	AppendRetries int         `yaml:"append_retries"`
	RetryBackoff  Duration    `yaml:"retry_backoff"`
	MaxBacklog    int         `yaml:"max_backlog"`
	Cache         CacheConfig `yaml:"cache"`
}

// CacheConfig configures the optional redis latest-price cache
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// HistoryConfig configures the daily historical fetcher
type HistoryConfig struct {
	CoinID string `yaml:"coin_id"` // CoinGecko coin id, e.g. "ethereum"
	APIKey string `yaml:"api_key"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
