package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the aggregated series in memory. Used in tests and for
// ad hoc runs without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]map[int64]AggregatedPoint // symbol -> bucket unix nanos -> point
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[string]map[int64]AggregatedPoint),
	}
}

// Append writes a point, overwriting any existing point for the same bucket.
func (m *MemoryStore) Append(ctx context.Context, point AggregatedPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	buckets, ok := m.points[point.Symbol]
	if !ok {
		buckets = make(map[int64]AggregatedPoint)
		m.points[point.Symbol] = buckets
	}
	buckets[point.Timestamp.UnixNano()] = point
	return nil
}

// QueryRange returns points in [from, to] ordered by timestamp.
func (m *MemoryStore) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]AggregatedPoint, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var result []AggregatedPoint
	for _, point := range m.points[symbol] {
		if !point.Timestamp.Before(from) && !point.Timestamp.After(to) {
			result = append(result, point)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored points for a symbol.
func (m *MemoryStore) Len(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points[symbol])
}
