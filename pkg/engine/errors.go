// Package engine merges source observations into an ordered, gap-free
// aggregated series.
package engine

import "errors"

var (
	// ErrOutOfOrder indicates an observation older than the newest one recorded.
	ErrOutOfOrder = errors.New("observation out of order")
	// ErrNoSources indicates that no sources were provided.
	ErrNoSources = errors.New("no sources provided")
	// ErrAlreadyRunning indicates that the engine was started twice.
	ErrAlreadyRunning = errors.New("engine already running")
	// ErrUnknownSource indicates an observation from an unconfigured source.
	ErrUnknownSource = errors.New("unknown source")
)
