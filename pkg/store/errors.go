package store

import "errors"

var (
	// ErrUnknownDriver indicates an unsupported storage driver.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// ErrInvalidRange indicates a query range with from after to.
	ErrInvalidRange = errors.New("invalid query range")
	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)
