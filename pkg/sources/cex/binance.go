// Package cex provides exchange-backed price source adapters.
package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
	ws "github.com/rakshitha2207/trading-price-engine/pkg/sources/websocket"
)

const (
	binanceWSURL = "wss://stream.binance.com:9443/stream"
)

// BinanceSource streams trades for a single pair over the Binance combined
// stream WebSocket.
type BinanceSource struct {
	*sources.BaseSource
	wsURL    string
	wsClient *ws.Client
}

// BinanceTradeMessage is a trade event from the Binance combined stream.
// Timestamps are int64 milliseconds; prices and quantities are string decimals.
type BinanceTradeMessage struct {
	Stream string `json:"stream"` // e.g. "btcusdt@trade"
	Data   struct {
		EventType string `json:"e"` // "trade"
		EventTime int64  `json:"E"` // Event time (ms)
		Symbol    string `json:"s"` // Trading pair symbol
		TradeID   int64  `json:"t"` // Trade ID
		Price     string `json:"p"` // Price (string decimal)
		Quantity  string `json:"q"` // Quantity (string decimal)
		TradeTime int64  `json:"T"` // Trade time (ms)
	} `json:"data"`
}

// NewBinanceSource creates a new Binance source
func NewBinanceSource(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	pair, err := sources.GetPairFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}

	wsURL := binanceWSURL
	if url, ok := config["websocket_url"].(string); ok && url != "" {
		wsURL = url
	}

	base := sources.NewBaseSource("binance", pair, logger)

	source := &BinanceSource{
		BaseSource: base,
		wsURL:      wsURL,
	}

	source.wsClient = ws.NewClient(ws.Config{
		URL:    source.streamURL(),
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
func (s *BinanceSource) Initialize(ctx context.Context) error {
	s.Logger().Info("Initializing Binance source", "pair", s.Pair())
	return nil
}

// Start begins streaming trades. Connecting happens in the background so an
// unreachable exchange never blocks engine startup; the source simply stays
// down until the first observation arrives.
func (s *BinanceSource) Start(ctx context.Context) error {
	s.Logger().Info("Starting Binance source", "url", s.streamURL())
	go func() {
		if err := s.wsClient.ConnectWithRetry(ctx); err != nil {
			s.Logger().Error("Binance WebSocket connection failed", "error", err)
			s.EmitFault(err.Error())
		}
	}()
	return nil
}

// Stop halts the source and cleans up resources
func (s *BinanceSource) Stop() error {
	s.Logger().Info("Stopping Binance source")
	if s.wsClient != nil {
		s.wsClient.Close()
	}
	s.Close()
	return nil
}

// Subscribe registers a channel to receive updates
func (s *BinanceSource) Subscribe(updates chan<- sources.Update) error {
	s.AddSubscriber(updates)
	return nil
}

// streamURL builds the combined stream URL for the configured pair.
// Binance expects lowercase symbols in stream names.
func (s *BinanceSource) streamURL() string {
	stream := strings.ToLower(s.Pair()) + "@trade"
	return s.wsURL + "?streams=" + stream
}

// handleMessage processes incoming WebSocket messages
func (s *BinanceSource) handleMessage(message []byte) {
	var msg BinanceTradeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.Logger().Warn("Failed to unmarshal trade message", "error", err)
		return
	}

	if msg.Data.EventType != "trade" {
		return
	}
	if !strings.EqualFold(msg.Data.Symbol, s.Pair()) {
		return
	}

	price, err := decimal.NewFromString(msg.Data.Price)
	if err != nil {
		s.Logger().Warn("Failed to parse price", "price", msg.Data.Price, "error", err)
		return
	}

	timestamp := time.UnixMilli(msg.Data.TradeTime).UTC()
	s.Emit(price, timestamp)
}

// handleConnect is called when the WebSocket connection is established
func (s *BinanceSource) handleConnect() {
	s.Logger().Info("Binance WebSocket connected")
	s.SetHealthy(true)
}

// handleDisconnect is called when the WebSocket connection is lost
func (s *BinanceSource) handleDisconnect(err error) {
	s.Logger().Warn("Binance WebSocket disconnected", "error", err)
	s.EmitFault(err.Error())
}

// Register the source in init
func init() {
	sources.Register(sources.KindCEX, "binance", func(config map[string]interface{}) (sources.Source, error) {
		return NewBinanceSource(config)
	})
}
