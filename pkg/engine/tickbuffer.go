package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
)

// TickBuffer holds the recent observations of a single source in arrival
// order. Arrival order is timestamp order because out-of-order observations
// are rejected, so lookups can binary search.
type TickBuffer struct {
	mu         sync.RWMutex
	sourceID   string
	ticks      []sources.Observation
	outOfOrder uint64
}

// NewTickBuffer creates an empty buffer for a source.
func NewTickBuffer(sourceID string) *TickBuffer {
	return &TickBuffer{sourceID: sourceID}
}

// Record appends an observation. Observations older than the newest recorded
// one are rejected with ErrOutOfOrder. Equal timestamps are accepted; the
// later arrival wins lookups.
func (b *TickBuffer) Record(obs sources.Observation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.ticks); n > 0 && obs.Timestamp.Before(b.ticks[n-1].Timestamp) {
		b.outOfOrder++
		return ErrOutOfOrder
	}

	b.ticks = append(b.ticks, obs)
	return nil
}

// LatestAtOrBefore returns the newest observation with timestamp <= t.
// Among equal timestamps the last recorded one is returned.
func (b *TickBuffer) LatestAtOrBefore(t time.Time) (sources.Observation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// First index with timestamp > t; the entry just before it is the answer.
	idx := sort.Search(len(b.ticks), func(i int) bool {
		return b.ticks[i].Timestamp.After(t)
	})
	if idx == 0 {
		return sources.Observation{}, false
	}
	return b.ticks[idx-1], true
}

// HasObservationAfter reports whether any observation is newer than t.
func (b *TickBuffer) HasObservationAfter(t time.Time) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.ticks)
	return n > 0 && b.ticks[n-1].Timestamp.After(t)
}

// TrimBefore drops observations older than t, keeping at least the newest
// one so forward lookups always have a value.
func (b *TickBuffer) TrimBefore(t time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ticks) <= 1 {
		return 0
	}

	idx := sort.Search(len(b.ticks), func(i int) bool {
		return !b.ticks[i].Timestamp.Before(t)
	})
	if idx >= len(b.ticks) {
		idx = len(b.ticks) - 1
	}
	if idx == 0 {
		return 0
	}

	b.ticks = append(b.ticks[:0:0], b.ticks[idx:]...)
	return idx
}

// Len returns the number of buffered observations.
func (b *TickBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}

// OutOfOrderCount returns how many observations were rejected out of order.
func (b *TickBuffer) OutOfOrderCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.outOfOrder
}
