package clickhouse

import (
	"context"
	"fmt"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/storage"
)

// PoolCreationStore implements storage.PoolCreationStore using ClickHouse.
type PoolCreationStore struct {
	conn *Conn
}

// NewPoolCreationStore creates a new PoolCreationStore.
func NewPoolCreationStore(conn *Conn) *PoolCreationStore {
	return &PoolCreationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolCreationStore = (*PoolCreationStore)(nil)

const poolCreationColumns = `
	signature, slot, token_x, token_y, lb_pair, token_x_name, symbol,
	quote_mint, quote_fallback, strategy, verified, detected_at`

// Insert adds a new record. Returns ErrDuplicateKey if the signature exists.
// ReplacingMergeTree would silently collapse duplicates, so existence is checked first.
func (s *PoolCreationStore) Insert(ctx context.Context, pc *domain.PoolCreation) error {
	if err := storage.ValidatePoolCreation(pc); err != nil {
		return err
	}

	exists, err := s.exists(ctx, pc.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO pool_creations (` + poolCreationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err = s.conn.Exec(ctx, query,
		pc.Signature, pc.Slot, pc.TokenX, pc.TokenY, pc.LbPair, pc.TokenXName, pc.Symbol,
		pc.QuoteMint, pc.QuoteFallback, pc.Strategy, pc.Verified, pc.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pool creation: %w", err)
	}
	return nil
}

// GetBySignature retrieves a record by signature. Returns ErrNotFound if not exists.
func (s *PoolCreationStore) GetBySignature(ctx context.Context, signature string) (*domain.PoolCreation, error) {
	query := `SELECT` + poolCreationColumns + `
		FROM pool_creations FINAL
		WHERE signature = ?
		LIMIT 1`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get pool creation by signature: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get pool creation by signature: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var pc domain.PoolCreation
	if err := scanPoolCreation(rows, &pc); err != nil {
		return nil, fmt.Errorf("scan pool creation: %w", err)
	}
	return &pc, nil
}

// ListRecent returns up to limit records ordered by detected_at DESC, signature ASC.
func (s *PoolCreationStore) ListRecent(ctx context.Context, limit int) ([]*domain.PoolCreation, error) {
	query := `SELECT` + poolCreationColumns + `
		FROM pool_creations FINAL
		ORDER BY detected_at DESC, signature ASC
		LIMIT ?`

	rows, err := s.conn.Query(ctx, query, uint64(storage.NormalizeLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("list pool creations: %w", err)
	}
	defer rows.Close()

	var result []*domain.PoolCreation
	for rows.Next() {
		var pc domain.PoolCreation
		if err := scanPoolCreation(rows, &pc); err != nil {
			return nil, fmt.Errorf("scan pool creation: %w", err)
		}
		result = append(result, &pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool creations: %w", err)
	}
	return result, nil
}

func (s *PoolCreationStore) exists(ctx context.Context, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM pool_creations WHERE signature = ?`, signature).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoolCreation(row scanner, pc *domain.PoolCreation) error {
	return row.Scan(
		&pc.Signature,
		&pc.Slot,
		&pc.TokenX,
		&pc.TokenY,
		&pc.LbPair,
		&pc.TokenXName,
		&pc.Symbol,
		&pc.QuoteMint,
		&pc.QuoteFallback,
		&pc.Strategy,
		&pc.Verified,
		&pc.DetectedAt,
	)
}
