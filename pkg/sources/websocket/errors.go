// Package websocket provides a reconnecting WebSocket client for streaming sources.
package websocket

import "errors"

var (
	// ErrNotConnected indicates that the client is not connected.
	ErrNotConnected = errors.New("not connected")
	// ErrSendTimeout indicates that a send timed out.
	ErrSendTimeout = errors.New("send timeout")
	// ErrMaxRetries indicates that the maximum number of connection retries was exceeded.
	ErrMaxRetries = errors.New("max connection retries exceeded")
	// ErrConnectionLost indicates that the connection was lost.
	ErrConnectionLost = errors.New("connection lost")
)
