package engine

import (
	"sync"
	"time"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/metrics"
)

// Status is the liveness state of a source.
type Status int

const (
	// StatusDown means the source has been silent past the down threshold,
	// reported a connectivity fault, or has never delivered an observation.
	StatusDown Status = iota
	// StatusStale means the source has been silent past the stale threshold.
	StatusStale
	// StatusLive means the source delivered an observation recently.
	StatusLive
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusStale:
		return "stale"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// SourceState is a snapshot of one source's liveness.
type SourceState struct {
	SourceID        string
	Weight          float64
	Status          Status
	LastObservation time.Time
}

type monitorEntry struct {
	weight   float64
	status   Status
	lastSeen time.Time
	heard    bool
}

// Monitor tracks per-source liveness from observation arrival times and
// connectivity faults. Sources start down and only go live on their first
// observation.
type Monitor struct {
	mu         sync.RWMutex
	entries    map[string]*monitorEntry
	staleAfter time.Duration
	downAfter  time.Duration
	startedAt  time.Time
	logger     *logging.Logger
}

// NewMonitor creates a monitor for the given source weights.
func NewMonitor(weights map[string]float64, staleAfter, downAfter time.Duration, logger *logging.Logger) *Monitor {
	entries := make(map[string]*monitorEntry, len(weights))
	for id, w := range weights {
		entries[id] = &monitorEntry{weight: w, status: StatusDown}
		metrics.RecordLiveness(id, int(StatusDown))
	}
	return &Monitor{
		entries:    entries,
		staleAfter: staleAfter,
		downAfter:  downAfter,
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// ObserveObservation records an observation arrival and marks the source live.
func (m *Monitor) ObserveObservation(sourceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sourceID]
	if !ok {
		return ErrUnknownSource
	}

	if at.After(e.lastSeen) {
		e.lastSeen = at
	}
	e.heard = true
	m.transition(sourceID, e, StatusLive)
	return nil
}

// ObserveFault marks a source down immediately after a connectivity fault.
func (m *Monitor) ObserveFault(sourceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sourceID]
	if !ok {
		return ErrUnknownSource
	}

	if e.status != StatusDown {
		m.logger.Warn("Source reported connectivity fault",
			"source", sourceID,
			"reason", reason)
	}
	m.transition(sourceID, e, StatusDown)
	return nil
}

// Sweep demotes sources whose silence exceeds the stale or down thresholds.
// Sources that never delivered an observation are measured from monitor start.
func (m *Monitor) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		baseline := e.lastSeen
		if !e.heard {
			baseline = m.startedAt
		}
		silence := now.Sub(baseline)

		switch {
		case silence > m.downAfter:
			m.transition(id, e, StatusDown)
		case silence > m.staleAfter && e.status == StatusLive:
			m.transition(id, e, StatusStale)
		}
	}
}

// transition applies a status change with logging and metrics. Caller holds the lock.
func (m *Monitor) transition(sourceID string, e *monitorEntry, to Status) {
	if e.status == to {
		return
	}

	from := e.status
	e.status = to
	metrics.RecordLiveness(sourceID, int(to))

	switch {
	case to == StatusLive && from == StatusDown:
		m.logger.Info("Source recovered",
			"source", sourceID,
			"from", from.String())
	case to == StatusDown:
		m.logger.Warn("Source went down",
			"source", sourceID,
			"last_seen", e.lastSeen)
	default:
		m.logger.Info("Source status changed",
			"source", sourceID,
			"from", from.String(),
			"to", to.String())
	}
}

// Status returns the current status of a source.
func (m *Monitor) Status(sourceID string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[sourceID]
	if !ok {
		return StatusDown, false
	}
	return e.status, true
}

// Snapshot returns the state of all sources.
func (m *Monitor) Snapshot() map[string]SourceState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]SourceState, len(m.entries))
	for id, e := range m.entries {
		out[id] = SourceState{
			SourceID:        id,
			Weight:          e.weight,
			Status:          e.status,
			LastObservation: e.lastSeen,
		}
	}
	return out
}
