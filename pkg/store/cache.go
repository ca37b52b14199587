package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
)

// CachedStore wraps a SeriesStore and mirrors the latest point per symbol
// into Redis. Cache failures never fail the append; the inner store is the
// source of truth.
type CachedStore struct {
	inner  SeriesStore
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// CacheConfig configures the Redis latest-price cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewCachedStore wraps inner with a Redis latest-price cache.
func NewCachedStore(inner SeriesStore, cfg CacheConfig, logger *logging.Logger) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}

	return &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func latestKey(symbol string) string {
	return "latest:" + symbol
}

// Append writes through to the inner store, then refreshes the cache. The
// cache only ever moves forward: a point older than the cached one (e.g. a
// historical backfill row) leaves the cached latest price untouched.
func (c *CachedStore) Append(ctx context.Context, point AggregatedPoint) error {
	if err := c.inner.Append(ctx, point); err != nil {
		return err
	}

	cached, err := c.LatestPrice(ctx, point.Symbol)
	if err != nil {
		c.logger.Warn("Failed to read latest price cache", "error", err)
		return nil
	}
	if cached != nil && cached.Timestamp.After(point.Timestamp) {
		return nil
	}

	data, err := json.Marshal(point)
	if err != nil {
		c.logger.Warn("Failed to marshal point for cache", "error", err)
		return nil
	}

	if err := c.client.Set(ctx, latestKey(point.Symbol), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to update latest price cache",
			"symbol", point.Symbol,
			"error", err)
	}

	return nil
}

// QueryRange delegates to the inner store.
func (c *CachedStore) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]AggregatedPoint, error) {
	return c.inner.QueryRange(ctx, symbol, from, to)
}

// LatestPrice returns the most recently cached point for a symbol.
func (c *CachedStore) LatestPrice(ctx context.Context, symbol string) (*AggregatedPoint, error) {
	data, err := c.client.Get(ctx, latestKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest price cache: %w", err)
	}

	var point AggregatedPoint
	if err := json.Unmarshal(data, &point); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached point: %w", err)
	}
	return &point, nil
}

// Close closes the cache client and the inner store.
func (c *CachedStore) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Warn("Failed to close redis client", "error", err)
	}
	return c.inner.Close()
}
