package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/metrics"
	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
	"github.com/rakshitha2207/trading-price-engine/pkg/store"
)

const updateChannelSize = 1024

// Config holds the engine parameters.
type Config struct {
	Symbol          string
	BucketInterval  time.Duration
	StaleThreshold  time.Duration
	DownThreshold   time.Duration
	RetentionWindow time.Duration
	Weights         map[string]float64
	AppendRetries   int
	RetryBackoff    time.Duration
	MaxBacklog      int
}

// Engine merges observations from all sources into one aggregated series,
// one point per bucket, and persists it.
type Engine struct {
	cfg        Config
	srcs       []sources.Source
	store      store.SeriesStore
	buffers    map[string]*TickBuffer
	monitor    *Monitor
	aggregator *Aggregator
	logger     *logging.Logger

	updates chan sources.Update
	backlog []store.AggregatedPoint
	prev    *store.AggregatedPoint

	running bool
	runMu   sync.Mutex
	stopped chan struct{}
}

// New creates an engine over the given sources and store.
func New(cfg Config, srcs []sources.Source, st store.SeriesStore, logger *logging.Logger) (*Engine, error) {
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}

	buffers := make(map[string]*TickBuffer, len(srcs))
	for _, src := range srcs {
		buffers[src.Name()] = NewTickBuffer(src.Name())
	}

	return &Engine{
		cfg:        cfg,
		srcs:       srcs,
		store:      st,
		buffers:    buffers,
		monitor:    NewMonitor(cfg.Weights, cfg.StaleThreshold, cfg.DownThreshold, logger),
		aggregator: NewAggregator(cfg.Symbol, cfg.Weights, cfg.StaleThreshold),
		logger:     logger,
		updates:    make(chan sources.Update, updateChannelSize),
		stopped:    make(chan struct{}),
	}, nil
}

// Run starts the sources and processes buckets until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.runMu.Unlock()
	defer close(e.stopped)

	var started []sources.Source
	for _, src := range e.srcs {
		if err := src.Initialize(ctx); err != nil {
			e.stopSources(started)
			return fmt.Errorf("failed to initialize source %s: %w", src.Name(), err)
		}
		if err := src.Subscribe(e.updates); err != nil {
			e.stopSources(started)
			return fmt.Errorf("failed to subscribe to source %s: %w", src.Name(), err)
		}
		if err := src.Start(ctx); err != nil {
			e.stopSources(started)
			return fmt.Errorf("failed to start source %s: %w", src.Name(), err)
		}
		started = append(started, src)
	}

	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		e.ingestLoop(ctx)
	}()

	e.logger.Info("Engine started",
		"symbol", e.cfg.Symbol,
		"bucket_interval", e.cfg.BucketInterval,
		"sources", len(e.srcs))

	e.tickLoop(ctx)

	<-ingestDone
	e.stopSources(e.srcs)
	e.drainBacklog()

	e.logger.Info("Engine stopped", "symbol", e.cfg.Symbol)
	return nil
}

// Wait blocks until Run has returned.
func (e *Engine) Wait() {
	<-e.stopped
}

// QueryRange returns stored points for the engine's symbol.
func (e *Engine) QueryRange(ctx context.Context, from, to time.Time) ([]store.AggregatedPoint, error) {
	return e.store.QueryRange(ctx, e.cfg.Symbol, from, to)
}

// SourceStates returns the current liveness snapshot.
func (e *Engine) SourceStates() map[string]SourceState {
	return e.monitor.Snapshot()
}

// ingestLoop is the single writer into the buffers and the monitor.
func (e *Engine) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-e.updates:
			e.handleUpdate(update)
		}
	}
}

func (e *Engine) handleUpdate(update sources.Update) {
	if update.Fault != nil {
		if err := e.monitor.ObserveFault(update.Fault.SourceID, update.Fault.Reason); err != nil {
			e.logger.Warn("Fault from unknown source", "source", update.Fault.SourceID)
		}
		return
	}
	if update.Observation == nil {
		return
	}

	obs := *update.Observation
	buf, ok := e.buffers[obs.SourceID]
	if !ok {
		e.logger.Warn("Observation from unknown source", "source", obs.SourceID)
		return
	}

	if err := buf.Record(obs); err != nil {
		metrics.RecordOutOfOrder(obs.SourceID)
		e.logger.Debug("Dropped out-of-order observation",
			"source", obs.SourceID,
			"timestamp", obs.Timestamp,
			"seq", obs.Seq)
		return
	}

	if err := e.monitor.ObserveObservation(obs.SourceID, obs.Timestamp); err != nil {
		e.logger.Warn("Observation from unknown source", "source", obs.SourceID)
	}
}

// tickLoop processes one bucket per interval, aligned to the Unix epoch.
func (e *Engine) tickLoop(ctx context.Context) {
	boundary := time.Now().Truncate(e.cfg.BucketInterval).Add(e.cfg.BucketInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(boundary)):
			e.processBucket(ctx, boundary)
			boundary = boundary.Add(e.cfg.BucketInterval)
			// Catch up if a slow append pushed us past the next boundary.
			for !boundary.After(time.Now()) {
				e.processBucket(ctx, boundary)
				boundary = boundary.Add(e.cfg.BucketInterval)
			}
		}
	}
}

func (e *Engine) processBucket(ctx context.Context, boundary time.Time) {
	start := time.Now()

	e.monitor.Sweep(boundary)
	e.flushBacklog(ctx)

	point, ok := e.aggregator.ComputeBucket(boundary, e.buffers, e.monitor, e.prev)
	if !ok {
		// No source has produced anything yet and there is nothing to carry
		// forward. The series starts at the first observed bucket.
		e.logger.Debug("Skipping empty bucket before first observation", "boundary", boundary)
		return
	}

	e.prev = &point
	metrics.RecordBucket(point.Filled, time.Since(start))

	if point.Filled && len(point.Sources) == 0 {
		e.logger.Warn("All sources unavailable, carrying previous price forward",
			"boundary", boundary,
			"price", point.Price)
	}

	e.persist(ctx, point)
	e.trimBuffers(boundary)
}

// persist appends with bounded retries; on failure the point goes to the
// backlog so the series stays gap free once the store recovers.
func (e *Engine) persist(ctx context.Context, point store.AggregatedPoint) {
	var err error
	for attempt := 0; attempt <= e.cfg.AppendRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordAppendRetry()
			select {
			case <-ctx.Done():
				e.enqueueBacklog(point)
				return
			case <-time.After(e.cfg.RetryBackoff):
			}
		}
		if err = e.store.Append(ctx, point); err == nil {
			return
		}
	}

	e.logger.Error("Failed to persist point, backlogging",
		"boundary", point.Timestamp,
		"error", err)
	e.enqueueBacklog(point)
}

func (e *Engine) enqueueBacklog(point store.AggregatedPoint) {
	if e.cfg.MaxBacklog > 0 && len(e.backlog) >= e.cfg.MaxBacklog {
		dropped := e.backlog[0]
		e.backlog = e.backlog[1:]
		metrics.RecordDroppedPoints(1)
		e.logger.Error("Backlog full, dropping oldest point; data lost",
			"dropped_boundary", dropped.Timestamp,
			"backlog", len(e.backlog))
	}
	e.backlog = append(e.backlog, point)
	metrics.SetBacklogSize(len(e.backlog))
}

// flushBacklog replays backlogged points in order, stopping at the first
// failure so ordering is preserved.
func (e *Engine) flushBacklog(ctx context.Context) {
	for len(e.backlog) > 0 {
		if err := e.store.Append(ctx, e.backlog[0]); err != nil {
			return
		}
		e.backlog = e.backlog[1:]
	}
	metrics.SetBacklogSize(len(e.backlog))
}

// drainBacklog makes a final flush attempt on shutdown.
func (e *Engine) drainBacklog() {
	if len(e.backlog) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.logger.Info("Draining backlog before shutdown", "points", len(e.backlog))
	e.flushBacklog(ctx)
	if len(e.backlog) > 0 {
		metrics.RecordDroppedPoints(len(e.backlog))
		e.logger.Error("Backlog not fully drained; data lost", "points", len(e.backlog))
	}
}

func (e *Engine) trimBuffers(boundary time.Time) {
	cutoff := boundary.Add(-e.cfg.RetentionWindow)
	for _, buf := range e.buffers {
		buf.TrimBefore(cutoff)
	}
}

func (e *Engine) stopSources(srcs []sources.Source) {
	var wg sync.WaitGroup
	for _, src := range srcs {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			if err := src.Stop(); err != nil {
				e.logger.Warn("Failed to stop source", "source", src.Name(), "error", err)
			}
		}(src)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.logger.Warn("Timed out waiting for sources to stop")
	}
}
