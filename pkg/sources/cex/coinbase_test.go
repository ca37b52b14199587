package cex

import (
	"context"
	"testing"
	"time"

	"github.com/rakshitha2207/trading-price-engine/pkg/sources"
)

func TestCoinbaseSource_NewSource(t *testing.T) {
	config := map[string]interface{}{
		"pair": "BTC-USD",
	}

	source, err := NewCoinbaseSource(config)
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}

	if source.Name() != "coinbase" {
		t.Errorf("Expected name 'coinbase', got '%s'", source.Name())
	}
}

func TestCoinbaseSource_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{
			name:   "missing pair",
			config: map[string]interface{}{},
		},
		{
			name: "empty pair",
			config: map[string]interface{}{
				"pair": "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoinbaseSource(tt.config)
			if err == nil {
				t.Error("Expected error for invalid config, got none")
			}
		})
	}
}

func TestCoinbaseSource_StartDoesNotBlockOnConnectFailure(t *testing.T) {
	source, err := NewCoinbaseSource(map[string]interface{}{
		"pair":          "BTC-USD",
		"websocket_url": "ws://127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}
	defer source.Stop()

	done := make(chan error, 1)
	go func() { done <- source.Start(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked on an unreachable endpoint")
	}
}

func TestCoinbaseSource_HandleMessage(t *testing.T) {
	source, err := NewCoinbaseSource(map[string]interface{}{"pair": "BTC-USD"})
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}

	updates := make(chan sources.Update, 1)
	if err := source.Subscribe(updates); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	coinbaseSource := source.(*CoinbaseSource)
	coinbaseSource.handleMessage([]byte(`{
		"type": "ticker",
		"product_id": "BTC-USD",
		"price": "65000.50",
		"time": "2024-06-01T12:00:00.123456Z"
	}`))

	select {
	case update := <-updates:
		if update.Observation == nil {
			t.Fatal("Expected an observation update")
		}
		obs := update.Observation
		if obs.SourceID != "coinbase" {
			t.Errorf("Expected source 'coinbase', got '%s'", obs.SourceID)
		}
		if obs.Price.String() != "65000.5" {
			t.Errorf("Expected price 65000.5, got %s", obs.Price)
		}
		want := time.Date(2024, 6, 1, 12, 0, 0, 123456000, time.UTC)
		if !obs.Timestamp.Equal(want) {
			t.Errorf("Expected timestamp %v, got %v", want, obs.Timestamp)
		}
	default:
		t.Fatal("Expected an update, got none")
	}
}

func TestCoinbaseSource_HandleMessageIgnoresOthers(t *testing.T) {
	source, err := NewCoinbaseSource(map[string]interface{}{"pair": "BTC-USD"})
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}

	updates := make(chan sources.Update, 4)
	if err := source.Subscribe(updates); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	coinbaseSource := source.(*CoinbaseSource)

	// Subscription confirmations carry no price.
	coinbaseSource.handleMessage([]byte(`{"type":"subscriptions","channels":[]}`))
	// Ticker for a different product.
	coinbaseSource.handleMessage([]byte(`{"type":"ticker","product_id":"ETH-USD","price":"3000","time":"2024-06-01T12:00:00Z"}`))
	// Bad price.
	coinbaseSource.handleMessage([]byte(`{"type":"ticker","product_id":"BTC-USD","price":"oops","time":"2024-06-01T12:00:00Z"}`))

	select {
	case <-updates:
		t.Error("Expected no updates for ignored messages")
	default:
	}
}

func TestCoinbaseSource_HandleMessageMissingTime(t *testing.T) {
	source, err := NewCoinbaseSource(map[string]interface{}{"pair": "BTC-USD"})
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}

	updates := make(chan sources.Update, 1)
	if err := source.Subscribe(updates); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	before := time.Now().Add(-time.Second)
	coinbaseSource := source.(*CoinbaseSource)
	// Ticker snapshots right after subscribing have no time field.
	coinbaseSource.handleMessage([]byte(`{"type":"ticker","product_id":"BTC-USD","price":"65000"}`))

	select {
	case update := <-updates:
		if update.Observation == nil {
			t.Fatal("Expected an observation update")
		}
		if update.Observation.Timestamp.Before(before) {
			t.Error("Expected receive-time fallback timestamp")
		}
	default:
		t.Fatal("Expected an update, got none")
	}
}

func TestCoinbaseSource_DisconnectEmitsFault(t *testing.T) {
	source, err := NewCoinbaseSource(map[string]interface{}{"pair": "BTC-USD"})
	if err != nil {
		t.Fatalf("NewCoinbaseSource failed: %v", err)
	}

	updates := make(chan sources.Update, 1)
	if err := source.Subscribe(updates); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	coinbaseSource := source.(*CoinbaseSource)
	coinbaseSource.handleDisconnect(context.DeadlineExceeded)

	select {
	case update := <-updates:
		if update.Fault == nil {
			t.Fatal("Expected a fault update")
		}
	default:
		t.Fatal("Expected a fault update, got none")
	}
}
