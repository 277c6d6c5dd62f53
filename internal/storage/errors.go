package storage

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup key.
	ErrNotFound = errors.New("pool creation not found")

	// ErrDuplicateKey is returned when a record with the same signature is already stored.
	// Records are write-once.
	ErrDuplicateKey = errors.New("pool creation already stored")

	// ErrInvalidInput is returned when a record lacks signature, pool or token mint.
	ErrInvalidInput = errors.New("invalid pool creation")
)
