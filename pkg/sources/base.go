package sources

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/metrics"
)

// BaseSource provides common functionality for all price source adapters.
// Concrete adapters embed it and call Emit/EmitFault as data arrives.
type BaseSource struct {
	name          string
	pair          string // source-specific symbol, e.g. "BTCUSDT" or "bitcoin"
	seq           atomic.Uint64
	lastUpdate    time.Time
	updateMu      sync.RWMutex
	healthy       bool
	healthMu      sync.RWMutex
	subscribers   []chan<- Update
	subscribersMu sync.RWMutex
	stopChan      chan struct{}
	logger        *logging.Logger
}

// NewBaseSource creates a new base source.
// pair is the source-specific symbol for the configured trading pair.
func NewBaseSource(name, pair string, logger *logging.Logger) *BaseSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseSource{
		name:        name,
		pair:        pair,
		subscribers: make([]chan<- Update, 0),
		stopChan:    make(chan struct{}),
		logger:      logger,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Pair returns the source-specific pair symbol
func (b *BaseSource) Pair() string {
	return b.pair
}

// IsHealthy returns the health status
func (b *BaseSource) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseSource) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()
	b.healthy = healthy
}

// LastUpdate returns the time of the last successful observation
func (b *BaseSource) LastUpdate() time.Time {
	b.updateMu.RLock()
	defer b.updateMu.RUnlock()
	return b.lastUpdate
}

// Emit delivers a price observation to all subscribers. The observation
// carries the next sequence number for this source.
func (b *BaseSource) Emit(price decimal.Decimal, timestamp time.Time) {
	obs := Observation{
		SourceID:  b.name,
		Timestamp: timestamp.UTC(),
		Price:     price,
		Seq:       b.seq.Add(1),
	}

	b.updateMu.Lock()
	if timestamp.After(b.lastUpdate) {
		b.lastUpdate = timestamp
	}
	b.updateMu.Unlock()

	b.SetHealthy(true)
	metrics.RecordObservation(b.name, obs.Timestamp)

	b.notifySubscribers(Update{Observation: &obs})
}

// EmitFault delivers a connectivity fault to all subscribers.
func (b *BaseSource) EmitFault(reason string) {
	b.SetHealthy(false)
	b.notifySubscribers(Update{Fault: &ConnectivityFault{
		SourceID: b.name,
		Reason:   reason,
	}})
}

// AddSubscriber adds an update subscriber
func (b *BaseSource) AddSubscriber(ch chan<- Update) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()
	b.subscribers = append(b.subscribers, ch)
}

// notifySubscribers sends an update to all subscribers
func (b *BaseSource) notifySubscribers(update Update) {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- update:
		default:
			// Channel full, skip
			b.logger.Warn("Subscriber channel full, skipping update",
				"source", b.name)
		}
	}
}

// StopChan returns the stop channel
func (b *BaseSource) StopChan() <-chan struct{} {
	return b.stopChan
}

// Close closes the stop channel
func (b *BaseSource) Close() {
	select {
	case <-b.stopChan:
		// Already closed
	default:
		close(b.stopChan)
	}
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// GetLoggerFromConfig extracts logger from config map or returns a noop logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// GetPairFromConfig extracts the source-specific pair symbol from config.
func GetPairFromConfig(config map[string]interface{}) (string, error) {
	if pair, ok := config["pair"].(string); ok && pair != "" {
		return pair, nil
	}
	return "", ErrPairRequired
}
