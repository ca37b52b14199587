package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func baseConfig() *Config {
	return &Config{
		Symbol:          "BTCUSDT",
		BucketInterval:  Duration(time.Second),
		StaleThreshold:  Duration(2 * time.Second),
		DownThreshold:   Duration(10 * time.Second),
		RetentionWindow: Duration(60 * time.Second),
		Sources: []SourceConfig{
			{Type: "cex", Name: "binance", Enabled: true, Weight: 0.4},
			{Type: "cex", Name: "coinbase", Enabled: true, Weight: 0.3},
			{Type: "cex", Name: "coingecko", Enabled: true, Weight: 0.3},
		},
		Storage: StorageConfig{Driver: "memory"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, baseConfig().Validate())
}

func TestValidateSymbol(t *testing.T) {
	cfg := baseConfig()
	cfg.Symbol = "  "
	assert.ErrorIs(t, cfg.Validate(), ErrSymbolRequired)
}

func TestValidateIntervals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "zero bucket interval",
			mutate: func(c *Config) { c.BucketInterval = 0 },
			want:   ErrInvalidBucketInterval,
		},
		{
			name:   "stale below bucket",
			mutate: func(c *Config) { c.StaleThreshold = Duration(500 * time.Millisecond) },
			want:   ErrInvalidStaleThreshold,
		},
		{
			name:   "down not above stale",
			mutate: func(c *Config) { c.DownThreshold = Duration(2 * time.Second) },
			want:   ErrInvalidDownThreshold,
		},
		{
			name:   "retention below stale",
			mutate: func(c *Config) { c.RetentionWindow = Duration(time.Second) },
			want:   ErrInvalidRetentionWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateSources(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "no sources",
			mutate: func(c *Config) { c.Sources = nil },
			want:   ErrNoSourcesConfigured,
		},
		{
			name:   "missing type",
			mutate: func(c *Config) { c.Sources[0].Type = "" },
			want:   ErrSourceTypeRequired,
		},
		{
			name:   "missing name",
			mutate: func(c *Config) { c.Sources[1].Name = "" },
			want:   ErrSourceNameRequired,
		},
		{
			name:   "duplicate name",
			mutate: func(c *Config) { c.Sources[1].Name = "binance" },
			want:   ErrDuplicateSourceName,
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Sources[0].Weight = -0.1 },
			want:   ErrNegativeWeight,
		},
		{
			name: "all disabled",
			mutate: func(c *Config) {
				for i := range c.Sources {
					c.Sources[i].Enabled = false
				}
			},
			want: ErrNoSourcesEnabled,
		},
		{
			name:   "weights do not sum to one",
			mutate: func(c *Config) { c.Sources[0].Weight = 0.5 },
			want:   ErrWeightSum,
		},
		{
			name: "disabled source excluded from weight sum",
			mutate: func(c *Config) {
				c.Sources[2].Enabled = false
			},
			want: ErrWeightSum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateWeightTolerance(t *testing.T) {
	cfg := baseConfig()
	// Float noise within tolerance is accepted.
	cfg.Sources[0].Weight = 0.4 + 1e-12
	assert.NoError(t, cfg.Validate())
}

func TestValidateStorage(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Driver = "postgres"
	assert.ErrorIs(t, cfg.Validate(), ErrDSNRequired)

	cfg.Storage.DSN = "postgres://localhost/prices"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "sqlite"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownStorageDriver)

	cfg = baseConfig()
	cfg.Storage.Cache.Enabled = true
	assert.ErrorIs(t, cfg.Validate(), ErrCacheAddrRequired)

	cfg.Storage.Cache.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestValidateLogging(t *testing.T) {
	cfg := baseConfig()
	cfg.Logging.Level = "verbose"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidLogLevel)

	cfg = baseConfig()
	cfg.Logging.Format = "xml"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidLogFormat)
}
