package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a WebSocket client with automatic reconnection. Adapters set
// message/connect/disconnect handlers and the client keeps the connection
// alive with ping/pong and exponential backoff reconnects.
type Client struct {
	url          string
	conn         *websocket.Conn
	connMu       sync.RWMutex
	baseWait     time.Duration
	maxRetries   int
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
	logger       zerolog.Logger

	send chan []byte
	done chan struct{}

	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func(error)

	connected bool
	stateMu   sync.RWMutex
	closed    bool
	closeMu   sync.Mutex
}

// Config holds WebSocket client configuration
type Config struct {
	URL           string
	ReconnectWait time.Duration
	MaxRetries    int
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	Logger        zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(cfg Config) *Client {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = -1 // Infinite retries
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = 10 * time.Second
	}

	return &Client{
		url:          cfg.URL,
		baseWait:     cfg.ReconnectWait,
		maxRetries:   cfg.MaxRetries,
		pingInterval: cfg.PingInterval,
		pongWait:     cfg.PongWait,
		writeWait:    cfg.WriteWait,
		logger:       cfg.Logger,
		send:         make(chan []byte, 256),
		done:         make(chan struct{}),
	}
}

// SetHandlers sets the event handlers
func (c *Client) SetHandlers(onMessage func([]byte), onConnect func(), onDisconnect func(error)) {
	c.onMessage = onMessage
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
}

// Connect establishes the WebSocket connection
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setConnected(true)

	if c.onConnect != nil {
		c.onConnect()
	}

	c.logger.Info().Str("url", c.url).Msg("WebSocket connected")

	go c.readPump()
	go c.writePump()
	go c.pingPump()

	return nil
}

// ConnectWithRetry connects with automatic retry and exponential backoff
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	wait := c.baseWait
	retries := 0
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		retries++
		if c.maxRetries > 0 && retries >= c.maxRetries {
			return ErrMaxRetries
		}

		c.logger.Warn().
			Err(err).
			Int("retry", retries).
			Dur("wait", wait).
			Msg("WebSocket connection failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrNotConnected
		case <-time.After(wait):
			wait *= 2
			if wait > 60*time.Second {
				wait = 60 * time.Second
			}
		}
	}
}

// Send queues a message for delivery
func (c *Client) Send(data []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	select {
	case c.send <- data:
		return nil
	case <-time.After(c.writeWait):
		return ErrSendTimeout
	}
}

// SendJSON writes a JSON message directly to the connection.
// Holds the connection lock to serialize writes.
func (c *Client) SendJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(v)
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.setConnected(false)
	close(c.done)

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.connected = connected
}

// readPump reads messages from the WebSocket
func (c *Client) readPump() {
	defer func() {
		c.reconnect()
	}()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

// writePump writes queued messages to the WebSocket
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := conn.WriteMessage(websocket.TextMessage, message)
			c.connMu.Unlock()

			if err != nil {
				c.logger.Error().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

// pingPump sends periodic ping messages
func (c *Client) pingPump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()

			if err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket ping failed")
				return
			}
		}
	}
}

// reconnect attempts to reconnect after a lost connection
func (c *Client) reconnect() {
	select {
	case <-c.done:
		c.logger.Info().Msg("WebSocket client shutting down, skipping reconnection")
		return
	default:
	}

	c.setConnected(false)

	if c.onDisconnect != nil {
		c.onDisconnect(ErrConnectionLost)
	}

	c.logger.Warn().Msg("WebSocket disconnected, attempting to reconnect")

	if err := c.ConnectWithRetry(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("WebSocket reconnection failed")
	}
}
