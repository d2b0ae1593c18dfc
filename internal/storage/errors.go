package storage

import "errors"

// Storage errors shared by every backend. Stores are append-only.
var (
	// ErrNotFound is returned when a requested bar, trade or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already
	// exists. Ledgers and run reports are never updated in place.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
