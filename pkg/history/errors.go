package history

import "errors"

var (
	// ErrCoinIDRequired indicates a missing coin id.
	ErrCoinIDRequired = errors.New("coin id is required")
	// ErrFetchFailed indicates a non-OK API response.
	ErrFetchFailed = errors.New("historical fetch failed")
)
