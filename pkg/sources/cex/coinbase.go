package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
	ws "github.com/rakshitha2207/trading-price-engine/pkg/sources/websocket"
)

const (
	coinbaseWSURL = "wss://ws-feed.exchange.coinbase.com"
)

// CoinbaseSource streams ticker updates for a single product over the
// Coinbase Exchange WebSocket feed.
type CoinbaseSource struct {
	*sources.BaseSource
	wsURL    string
	wsClient *ws.Client
}

// coinbaseSubscribe is the subscription request sent after connecting.
type coinbaseSubscribe struct {
	Type     string                   `json:"type"`
	Channels []coinbaseChannelRequest `json:"channels"`
}

type coinbaseChannelRequest struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// CoinbaseTickerMessage is a ticker event from the Coinbase feed.
// Prices are string decimals; time is RFC3339 with sub-second precision.
type CoinbaseTickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

// NewCoinbaseSource creates a new Coinbase source
func NewCoinbaseSource(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	pair, err := sources.GetPairFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("coinbase: %w", err)
	}

	wsURL := coinbaseWSURL
	if url, ok := config["websocket_url"].(string); ok && url != "" {
		wsURL = url
	}

	base := sources.NewBaseSource("coinbase", pair, logger)

	source := &CoinbaseSource{
		BaseSource: base,
		wsURL:      wsURL,
	}

	source.wsClient = ws.NewClient(ws.Config{
		URL:    wsURL,
		Logger: logger.ZerologLogger(),
	})
	source.wsClient.SetHandlers(
		source.handleMessage,
		source.handleConnect,
		source.handleDisconnect,
	)

	return source, nil
}

// Initialize prepares the source for operation
func (s *CoinbaseSource) Initialize(ctx context.Context) error {
	s.Logger().Info("Initializing Coinbase source", "pair", s.Pair())
	return nil
}

// Start begins streaming ticker updates. Connecting happens in the background
// so an unreachable exchange never blocks engine startup; the source simply
// stays down until the first observation arrives.
func (s *CoinbaseSource) Start(ctx context.Context) error {
	s.Logger().Info("Starting Coinbase source", "url", s.wsURL)
	go func() {
		if err := s.wsClient.ConnectWithRetry(ctx); err != nil {
			s.Logger().Error("Coinbase WebSocket connection failed", "error", err)
			s.EmitFault(err.Error())
		}
	}()
	return nil
}

// Stop halts the source and cleans up resources
func (s *CoinbaseSource) Stop() error {
	s.Logger().Info("Stopping Coinbase source")
	if s.wsClient != nil {
		s.wsClient.Close()
	}
	s.Close()
	return nil
}

// Subscribe registers a channel to receive updates
func (s *CoinbaseSource) Subscribe(updates chan<- sources.Update) error {
	s.AddSubscriber(updates)
	return nil
}

// subscribeToTicker sends the ticker channel subscription for the pair.
// Coinbase drops connections that do not subscribe within 5 seconds.
func (s *CoinbaseSource) subscribeToTicker() error {
	req := coinbaseSubscribe{
		Type: "subscribe",
		Channels: []coinbaseChannelRequest{
			{Name: "ticker", ProductIDs: []string{s.Pair()}},
		},
	}
	return s.wsClient.SendJSON(req)
}

// handleMessage processes incoming WebSocket messages
func (s *CoinbaseSource) handleMessage(message []byte) {
	var msg CoinbaseTickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.Logger().Warn("Failed to unmarshal ticker message", "error", err)
		return
	}

	if msg.Type != "ticker" || msg.ProductID != s.Pair() {
		return
	}

	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		s.Logger().Warn("Failed to parse price", "price", msg.Price, "error", err)
		return
	}

	timestamp, err := time.Parse(time.RFC3339Nano, msg.Time)
	if err != nil {
		// Ticker snapshots sent right after subscribing omit the time field
		timestamp = time.Now()
	}

	s.Emit(price, timestamp.UTC())
}

// handleConnect is called when the WebSocket connection is established
func (s *CoinbaseSource) handleConnect() {
	s.Logger().Info("Coinbase WebSocket connected")
	s.SetHealthy(true)

	if err := s.subscribeToTicker(); err != nil {
		s.Logger().Error("Failed to subscribe to ticker channel", "error", err)
	}
}

// handleDisconnect is called when the WebSocket connection is lost
func (s *CoinbaseSource) handleDisconnect(err error) {
	s.Logger().Warn("Coinbase WebSocket disconnected", "error", err)
	s.EmitFault(err.Error())
}

// Register the source in init
func init() {
	sources.Register(sources.KindCEX, "coinbase", func(config map[string]interface{}) (sources.Source, error) {
		return NewCoinbaseSource(config)
	})
}
