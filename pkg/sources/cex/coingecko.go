package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
)

const (
	coingeckoBaseURL         = "https://api.coingecko.com/api/v3"
	coingeckoTimeout         = 10 * time.Second
	coingeckoFreeMinInterval = 15 * time.Second // Free API: ~4 calls/minute to stay under limit
	coingeckoProMinInterval  = 2 * time.Second  // Pro API: ~30 calls/minute
)

// CoinGeckoSource polls the CoinGecko REST API for a single coin.
// The pair symbol is the CoinGecko coin id, e.g. "bitcoin" or "ethereum".
type CoinGeckoSource struct {
	*sources.BaseSource

	apiKey         string
	apiURL         string
	updateInterval time.Duration
	minInterval    time.Duration // Minimum interval between requests (rate limiting)
	lastRequestMu  sync.Mutex
	lastRequest    time.Time
	client         *http.Client
}

// NewCoinGeckoSource creates a new CoinGecko source
func NewCoinGeckoSource(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	pair, err := sources.GetPairFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	updateInterval := 60 * time.Second
	if interval, ok := config["update_interval"].(string); ok {
		if d, err := time.ParseDuration(interval); err == nil {
			updateInterval = d
		}
	}

	apiKey := ""
	if key, ok := config["api_key"].(string); ok {
		apiKey = key
	}

	apiURL := coingeckoBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	minInterval := coingeckoFreeMinInterval
	if apiKey != "" {
		minInterval = coingeckoProMinInterval
	}

	if updateInterval < minInterval {
		logger.Warn("Update interval too short for CoinGecko rate limits, adjusting",
			"requested", updateInterval,
			"minimum", minInterval,
			"has_api_key", apiKey != "")
		updateInterval = minInterval
	}

	base := sources.NewBaseSource("coingecko", pair, logger)

	return &CoinGeckoSource{
		BaseSource:     base,
		apiKey:         apiKey,
		apiURL:         apiURL,
		updateInterval: updateInterval,
		minInterval:    minInterval,
		client: &http.Client{
			Timeout: coingeckoTimeout,
		},
	}, nil
}

// Initialize prepares the source for operation
func (s *CoinGeckoSource) Initialize(ctx context.Context) error {
	s.Logger().Info("Initializing CoinGecko source", "coin_id", s.Pair())
	return nil
}

// Start begins polling prices
func (s *CoinGeckoSource) Start(ctx context.Context) error {
	s.Logger().Info("Starting CoinGecko source")

	if err := s.fetchPrice(ctx); err != nil {
		s.Logger().Warn("Failed to fetch initial price", "error", err)
	}

	go s.updateLoop(ctx)

	return nil
}

// Stop halts the source and cleans up resources
func (s *CoinGeckoSource) Stop() error {
	s.Logger().Info("Stopping CoinGecko source")
	s.Close()
	return nil
}

// Subscribe registers a channel to receive updates
func (s *CoinGeckoSource) Subscribe(updates chan<- sources.Update) error {
	s.AddSubscriber(updates)
	return nil
}

// updateLoop periodically fetches the price
func (s *CoinGeckoSource) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.StopChan():
			return
		case <-ticker.C:
			if err := s.fetchPrice(ctx); err != nil {
				s.Logger().Error("Failed to fetch price", "error", err)
				s.EmitFault(err.Error())
			}
		}
	}
}

// fetchPrice fetches the current price from the CoinGecko API
func (s *CoinGeckoSource) fetchPrice(ctx context.Context) error {
	// Rate limiting: enforce minimum interval between requests
	s.lastRequestMu.Lock()
	if !s.lastRequest.IsZero() {
		elapsed := time.Since(s.lastRequest)
		if elapsed < s.minInterval {
			waitTime := s.minInterval - elapsed
			s.lastRequestMu.Unlock()
			s.Logger().Debug("Rate limiting: waiting before next request",
				"wait_time", waitTime,
				"min_interval", s.minInterval)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return ctx.Err()
			}
			s.lastRequestMu.Lock()
		}
	}
	s.lastRequest = time.Now()
	s.lastRequestMu.Unlock()

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_last_updated_at=true",
		s.apiURL, s.Pair())
	if s.apiKey != "" {
		url += "&x_cg_pro_api_key=" + s.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.Logger().Warn("CoinGecko rate limit exceeded",
			"status", resp.StatusCode,
			"has_api_key", s.apiKey != "")
		return fmt.Errorf("%w (status 429)", sources.ErrRateLimitExceeded)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	var data map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	coinData, ok := data[s.Pair()]
	if !ok {
		return fmt.Errorf("%w: coin %s missing", sources.ErrNoPriceInResponse, s.Pair())
	}
	usdPrice, ok := coinData["usd"]
	if !ok {
		return fmt.Errorf("%w: no usd quote", sources.ErrNoPriceInResponse)
	}

	// Prefer the exchange-side update time when present
	timestamp := time.Now()
	if lastUpdated, ok := coinData["last_updated_at"]; ok && lastUpdated > 0 {
		timestamp = time.Unix(int64(lastUpdated), 0)
	}

	s.Emit(decimal.NewFromFloat(usdPrice), timestamp.UTC())

	s.Logger().Debug("Fetched price from CoinGecko",
		"coin_id", s.Pair(),
		"price", usdPrice)

	return nil
}

// Register the source in init
func init() {
	sources.Register(sources.KindCEX, "coingecko", func(config map[string]interface{}) (sources.Source, error) {
		return NewCoinGeckoSource(config)
	})
}
