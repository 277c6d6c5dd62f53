package storage

import (
	"context"

	"dlmm-notifier/internal/domain"
)

// DefaultListLimit caps ListRecent when the caller passes a non-positive limit.
const DefaultListLimit = 100

// PoolCreationStore provides access to pool_creations storage.
type PoolCreationStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the signature exists.
	Insert(ctx context.Context, pc *domain.PoolCreation) error

	// GetBySignature retrieves a record by signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.PoolCreation, error)

	// ListRecent returns up to limit records, newest detection first.
	ListRecent(ctx context.Context, limit int) ([]*domain.PoolCreation, error)
}

// ValidatePoolCreation checks the fields every backend requires.
func ValidatePoolCreation(pc *domain.PoolCreation) error {
	if pc == nil || pc.Signature == "" || pc.LbPair == "" || pc.TokenX == "" {
		return ErrInvalidInput
	}
	return nil
}

// NormalizeLimit maps non-positive limits to DefaultListLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
