package memory

import (
	"context"
	"sort"
	"sync"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/storage"
)

// PoolCreationStore is an in-memory implementation of storage.PoolCreationStore.
type PoolCreationStore struct {
	mu          sync.RWMutex
	bySignature map[string]*domain.PoolCreation
}

// NewPoolCreationStore creates a new in-memory pool creation store.
func NewPoolCreationStore() *PoolCreationStore {
	return &PoolCreationStore{
		bySignature: make(map[string]*domain.PoolCreation),
	}
}

var _ storage.PoolCreationStore = (*PoolCreationStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the signature exists.
func (s *PoolCreationStore) Insert(_ context.Context, pc *domain.PoolCreation) error {
	if err := storage.ValidatePoolCreation(pc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySignature[pc.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	pcCopy := *pc
	s.bySignature[pc.Signature] = &pcCopy
	return nil
}

// GetBySignature retrieves a record by signature. Returns ErrNotFound if not exists.
func (s *PoolCreationStore) GetBySignature(_ context.Context, signature string) (*domain.PoolCreation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pc, exists := s.bySignature[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	pcCopy := *pc
	return &pcCopy, nil
}

// ListRecent returns up to limit records ordered by detected_at DESC, signature ASC.
func (s *PoolCreationStore) ListRecent(_ context.Context, limit int) ([]*domain.PoolCreation, error) {
	limit = storage.NormalizeLimit(limit)

	s.mu.RLock()
	result := make([]*domain.PoolCreation, 0, len(s.bySignature))
	for _, pc := range s.bySignature {
		pcCopy := *pc
		result = append(result, &pcCopy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].DetectedAt != result[j].DetectedAt {
			return result[i].DetectedAt > result[j].DetectedAt
		}
		return result[i].Signature < result[j].Signature
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
