// Package sources provides price source interfaces and implementations.
package sources

import "errors"

var (
	// ErrUnknownSource indicates that no factory is registered for the source.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrPairRequired indicates that the source-specific pair symbol is missing.
	ErrPairRequired = errors.New("pair must be specified")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrNoPriceInResponse indicates that no usable price was in the response.
	ErrNoPriceInResponse = errors.New("no price in response")
	// ErrSourceStopped indicates that the source has been stopped.
	ErrSourceStopped = errors.New("source stopped")
)
