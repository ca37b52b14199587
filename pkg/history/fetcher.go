// Package history backfills the series store from the CoinGecko market
// chart API.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/logging"
	"github.com/rakshitha2207/trading-price-engine/pkg/metrics"
	"github.com/rakshitha2207/trading-price-engine/pkg/store"
)

const (
	defaultAPIURL  = "https://api.coingecko.com/api/v3"
	requestTimeout = 30 * time.Second
)

// Fetcher downloads historical prices for one coin and writes them to the
// series store.
type Fetcher struct {
	symbol string
	coinID string
	apiKey string
	apiURL string
	store  store.SeriesStore
	client *http.Client
	logger *logging.Logger
}

// Config configures a historical fetcher.
type Config struct {
	Symbol string
	CoinID string
	APIKey string
	APIURL string
}

// NewFetcher creates a fetcher writing into st.
func NewFetcher(cfg Config, st store.SeriesStore, logger *logging.Logger) (*Fetcher, error) {
	if cfg.CoinID == "" {
		return nil, ErrCoinIDRequired
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Fetcher{
		symbol: cfg.Symbol,
		coinID: cfg.CoinID,
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		store:  st,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}, nil
}

// marketChartResponse mirrors the CoinGecko market_chart payload. Each price
// entry is a [unix_ms, price] pair.
type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

// Backfill fetches prices in [from, to] and appends them to the store.
// Returns the number of points written.
func (f *Fetcher) Backfill(ctx context.Context, from, to time.Time) (int, error) {
	if from.After(to) {
		return 0, store.ErrInvalidRange
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=usd&from=%d&to=%d",
		f.apiURL, f.coinID, from.Unix(), to.Unix())
	if f.apiKey != "" {
		url += "&x_cg_pro_api_key=" + f.apiKey
	}

	f.logger.Info("Fetching historical prices",
		"coin_id", f.coinID,
		"from", from,
		"to", to)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	var chart marketChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	written := 0
	for _, entry := range chart.Prices {
		if len(entry) != 2 {
			continue
		}

		point := store.AggregatedPoint{
			Symbol:    f.symbol,
			Timestamp: time.UnixMilli(int64(entry[0])).UTC(),
			Price:     decimal.NewFromFloat(entry[1]),
			Sources:   []string{"coingecko"},
			Filled:    false,
		}
		if err := f.store.Append(ctx, point); err != nil {
			return written, fmt.Errorf("failed to store historical point: %w", err)
		}
		written++
	}

	metrics.RecordHistoricalRows(written)
	f.logger.Info("Historical backfill complete",
		"coin_id", f.coinID,
		"points", written)

	return written, nil
}
