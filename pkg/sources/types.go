package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is a single price observation delivered by a source adapter.
// Timestamps are UTC with millisecond precision; sequence numbers are
// assigned per source in emission order and break ties between observations
// that share a timestamp.
type Observation struct {
	SourceID  string          `json:"source_id"`
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Seq       uint64          `json:"seq"`
}

// ConnectivityFault signals that a source lost its connection or otherwise
// cannot deliver observations.
type ConnectivityFault struct {
	SourceID string
	Reason   string
}

// Update is one item delivered by a source adapter: either an observation or
// a connectivity fault, never both.
type Update struct {
	Observation *Observation
	Fault       *ConnectivityFault
}

// Source defines the interface that all price source adapters must implement
type Source interface {
	// Initialize prepares the source for operation
	Initialize(ctx context.Context) error

	// Start begins delivering observations or fault signals to subscribers
	Start(ctx context.Context) error

	// Stop halts the source and cleans up resources
	Stop() error

	// Subscribe registers a channel to receive updates
	Subscribe(updates chan<- Update) error

	// Name returns the unique name of this source
	Name() string

	// IsHealthy returns whether the source is currently healthy
	IsHealthy() bool

	// LastUpdate returns the timestamp of the last successful update
	LastUpdate() time.Time
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
