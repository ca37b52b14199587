package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/store"
)

func TestBackfillWritesPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart/range", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prices":[[1717243200000,65000.5],[1717246800000,65100.25],[1717250400000,64950]]}`))
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	fetcher, err := NewFetcher(Config{
		Symbol: "BTCUSDT",
		CoinID: "bitcoin",
		APIURL: server.URL,
	}, st, logging.NewNoopLogger())
	require.NoError(t, err)

	from := time.Unix(1717243200, 0)
	to := time.Unix(1717250400, 0)

	written, err := fetcher.Backfill(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	points, err := st.QueryRange(context.Background(), "BTCUSDT", from, to)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.True(t, points[0].Price.Equal(decimal.NewFromFloat(65000.5)))
	assert.Equal(t, []string{"coingecko"}, points[0].Sources)
	assert.False(t, points[0].Filled)
	assert.Equal(t, time.UnixMilli(1717243200000).UTC(), points[0].Timestamp)
}

func TestBackfillAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher, err := NewFetcher(Config{
		Symbol: "BTCUSDT",
		CoinID: "bitcoin",
		APIURL: server.URL,
	}, store.NewMemoryStore(), logging.NewNoopLogger())
	require.NoError(t, err)

	_, err = fetcher.Backfill(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestBackfillInvalidRange(t *testing.T) {
	fetcher, err := NewFetcher(Config{
		Symbol: "BTCUSDT",
		CoinID: "bitcoin",
	}, store.NewMemoryStore(), logging.NewNoopLogger())
	require.NoError(t, err)

	_, err = fetcher.Backfill(context.Background(), time.Unix(10, 0), time.Unix(5, 0))
	assert.ErrorIs(t, err, store.ErrInvalidRange)
}

func TestNewFetcherRequiresCoinID(t *testing.T) {
	_, err := NewFetcher(Config{Symbol: "BTCUSDT"}, store.NewMemoryStore(), logging.NewNoopLogger())
	assert.ErrorIs(t, err, ErrCoinIDRequired)
}
