// Package store persists aggregated price points and serves range queries.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AggregatedPoint is one bucket of the aggregated series.
type AggregatedPoint struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Sources   []string        `json:"sources"`
	Filled    bool            `json:"filled"`
}

// SeriesStore persists the aggregated series.
type SeriesStore interface {
	// Append writes a point. Appending the same (symbol, timestamp) twice
	// overwrites the previous value.
	Append(ctx context.Context, point AggregatedPoint) error
	// QueryRange returns all points for symbol with from <= timestamp <= to,
	// ordered by timestamp ascending.
	QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]AggregatedPoint, error)
	Close() error
}

// Open creates a SeriesStore for the given driver.
func Open(driver, dsn string) (SeriesStore, error) {
	switch driver {
	case "postgres":
		return NewPostgresStore(dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
