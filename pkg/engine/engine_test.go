package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
	"github.com/rakshitha2207/trading-price-engine/pkg/store"
)

// fakeSource delivers test-scripted observations to its subscribers.
type fakeSource struct {
	name     string
	startErr error
	mu       sync.Mutex
	subs     []chan<- sources.Update
	seq      uint64
	stopped  bool
}

func newFakeSource(name string) *fakeSource { return &fakeSource{name: name} }

func (f *fakeSource) Initialize(ctx context.Context) error { return nil }
func (f *fakeSource) Start(ctx context.Context) error      { return f.startErr }
func (f *fakeSource) Name() string                         { return f.name }
func (f *fakeSource) IsHealthy() bool                      { return true }
func (f *fakeSource) LastUpdate() time.Time                { return time.Now() }

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeSource) Subscribe(ch chan<- sources.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, ch)
	return nil
}

func (f *fakeSource) emit(price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	obs := &sources.Observation{
		SourceID:  f.name,
		Timestamp: time.Now().UTC(),
		Price:     decimal.NewFromFloat(price),
		Seq:       f.seq,
	}
	for _, ch := range f.subs {
		select {
		case ch <- sources.Update{Observation: obs}:
		default:
		}
	}
}

func (f *fakeSource) fault(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- sources.Update{Fault: &sources.ConnectivityFault{SourceID: f.name, Reason: reason}}:
		default:
		}
	}
}

func testEngineConfig(weights map[string]float64) Config {
	return Config{
		Symbol:          "BTCUSDT",
		BucketInterval:  50 * time.Millisecond,
		StaleThreshold:  150 * time.Millisecond,
		DownThreshold:   time.Second,
		RetentionWindow: time.Second,
		Weights:         weights,
		AppendRetries:   1,
		RetryBackoff:    time.Millisecond,
		MaxBacklog:      16,
	}
}

func runEngine(t *testing.T, eng *Engine) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	go func() {
		if err := eng.Run(ctx); err != nil {
			t.Errorf("engine run failed: %v", err)
		}
	}()
	return func() {
		cancelCtx()
		eng.Wait()
	}
}

func TestEngineProducesContiguousBuckets(t *testing.T) {
	binance := newFakeSource("binance")
	coinbase := newFakeSource("coinbase")
	st := store.NewMemoryStore()

	eng, err := New(
		testEngineConfig(map[string]float64{"binance": 0.5, "coinbase": 0.5}),
		[]sources.Source{binance, coinbase},
		st,
		logging.NewNoopLogger(),
	)
	require.NoError(t, err)

	stop := runEngine(t, eng)

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		for i := 0; i < 40; i++ {
			binance.emit(100)
			coinbase.emit(110)
			time.Sleep(10 * time.Millisecond)
		}
	}()
	<-feedDone
	stop()

	points, err := st.QueryRange(context.Background(), "BTCUSDT",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(points), 3)

	for i := 1; i < len(points); i++ {
		assert.Equal(t, 50*time.Millisecond, points[i].Timestamp.Sub(points[i-1].Timestamp),
			"gap between bucket %d and %d", i-1, i)
	}

	// With both sources live the 0.5/0.5 average of 100 and 110 is 105.
	last := points[len(points)-1]
	assert.True(t, last.Price.Equal(decimal.NewFromInt(105)), "got %s", last.Price)
	assert.Equal(t, []string{"binance", "coinbase"}, last.Sources)
	assert.False(t, last.Filled)
}

func TestEngineForwardFillsOutage(t *testing.T) {
	binance := newFakeSource("binance")
	st := store.NewMemoryStore()

	eng, err := New(
		testEngineConfig(map[string]float64{"binance": 1.0}),
		[]sources.Source{binance},
		st,
		logging.NewNoopLogger(),
	)
	require.NoError(t, err)

	stop := runEngine(t, eng)

	// One burst of observations, then silence past the stale threshold.
	for i := 0; i < 5; i++ {
		binance.emit(100)
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(400 * time.Millisecond)
	stop()

	points, err := st.QueryRange(context.Background(), "BTCUSDT",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, points)

	var filled []store.AggregatedPoint
	for _, p := range points {
		if p.Filled {
			filled = append(filled, p)
		}
	}
	require.NotEmpty(t, filled, "silence should produce forward-filled buckets")
	for _, p := range filled {
		assert.True(t, p.Price.Equal(decimal.NewFromInt(100)))
		assert.Empty(t, p.Sources)
	}
}

func TestEngineSourceFaultExcludesSource(t *testing.T) {
	binance := newFakeSource("binance")
	coinbase := newFakeSource("coinbase")
	st := store.NewMemoryStore()

	eng, err := New(
		testEngineConfig(map[string]float64{"binance": 0.5, "coinbase": 0.5}),
		[]sources.Source{binance, coinbase},
		st,
		logging.NewNoopLogger(),
	)
	require.NoError(t, err)

	stop := runEngine(t, eng)

	coinbase.fault("connection lost")
	for i := 0; i < 20; i++ {
		binance.emit(100)
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	points, err := st.QueryRange(context.Background(), "BTCUSDT",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, points)

	last := points[len(points)-1]
	assert.True(t, last.Price.Equal(decimal.NewFromInt(100)), "got %s", last.Price)
	assert.Equal(t, []string{"binance"}, last.Sources)
	assert.True(t, last.Filled)
}

// flakyStore fails the first failures appends, then behaves normally.
type flakyStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Append(ctx context.Context, point store.AggregatedPoint) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return assert.AnError
	}
	f.mu.Unlock()
	return f.MemoryStore.Append(ctx, point)
}

func TestEngineBacklogRecoversFromStoreOutage(t *testing.T) {
	binance := newFakeSource("binance")
	st := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 2}

	eng, err := New(
		testEngineConfig(map[string]float64{"binance": 1.0}),
		[]sources.Source{binance},
		st,
		logging.NewNoopLogger(),
	)
	require.NoError(t, err)

	stop := runEngine(t, eng)

	for i := 0; i < 40; i++ {
		binance.emit(100)
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	points, err := st.QueryRange(context.Background(), "BTCUSDT",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(points), 3)

	// The point that failed to persist was replayed from the backlog, so
	// the stored series has no holes.
	for i := 1; i < len(points); i++ {
		assert.Equal(t, 50*time.Millisecond, points[i].Timestamp.Sub(points[i-1].Timestamp))
	}
}

// failingStore rejects every append and records the attempted bucket times.
type failingStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	attempts []time.Time
}

func (f *failingStore) Append(ctx context.Context, point store.AggregatedPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, point.Timestamp)
	return assert.AnError
}

func (f *failingStore) attemptTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.attempts...)
}

func TestEngineBacklogDropsOldestOnOverflow(t *testing.T) {
	binance := newFakeSource("binance")
	st := &failingStore{MemoryStore: store.NewMemoryStore()}

	cfg := testEngineConfig(map[string]float64{"binance": 1.0})
	cfg.MaxBacklog = 2
	cfg.AppendRetries = 0

	eng, err := New(cfg, []sources.Source{binance}, st, logging.NewNoopLogger())
	require.NoError(t, err)

	stop := runEngine(t, eng)
	for i := 0; i < 40; i++ {
		binance.emit(100)
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	attempts := st.attemptTimes()
	require.NotEmpty(t, attempts)

	distinct := make(map[int64]bool)
	for _, ts := range attempts {
		distinct[ts.UnixNano()] = true
	}
	require.GreaterOrEqual(t, len(distinct), 3, "expected several buckets to be attempted")

	// The backlog never grows past its bound and the oldest buckets were
	// dropped, so the surviving entries postdate the first failed bucket.
	require.NotEmpty(t, eng.backlog)
	assert.LessOrEqual(t, len(eng.backlog), cfg.MaxBacklog)
	assert.True(t, eng.backlog[0].Timestamp.After(attempts[0]),
		"oldest backlog entry %v should postdate first failed bucket %v",
		eng.backlog[0].Timestamp, attempts[0])
}

func TestEngineStopsStartedSourcesOnStartFailure(t *testing.T) {
	good := newFakeSource("binance")
	bad := newFakeSource("coinbase")
	bad.startErr = assert.AnError

	eng, err := New(
		testEngineConfig(map[string]float64{"binance": 0.5, "coinbase": 0.5}),
		[]sources.Source{good, bad},
		store.NewMemoryStore(),
		logging.NewNoopLogger(),
	)
	require.NoError(t, err)

	err = eng.Run(context.Background())
	require.Error(t, err)
	assert.True(t, good.wasStopped(), "already-started source should be stopped on startup failure")
	assert.False(t, bad.wasStopped())
}

func TestEngineRequiresSources(t *testing.T) {
	_, err := New(testEngineConfig(nil), nil, store.NewMemoryStore(), logging.NewNoopLogger())
	assert.ErrorIs(t, err, ErrNoSources)
}
