package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/storage"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const poolCreationsTable = "pool_creations"

var poolCreationColumns = []string{
	"signature", "slot", "token_x", "token_y", "lb_pair", "token_x_name", "symbol",
	"quote_mint", "quote_fallback", "strategy", "verified", "detected_at",
}

// PoolCreationStore implements storage.PoolCreationStore using PostgreSQL.
type PoolCreationStore struct {
	pool *Pool
}

// NewPoolCreationStore creates a new PoolCreationStore.
func NewPoolCreationStore(pool *Pool) *PoolCreationStore {
	return &PoolCreationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolCreationStore = (*PoolCreationStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the signature exists.
func (s *PoolCreationStore) Insert(ctx context.Context, pc *domain.PoolCreation) error {
	if err := storage.ValidatePoolCreation(pc); err != nil {
		return err
	}

	query, args, err := psql.Insert(poolCreationsTable).
		Columns(poolCreationColumns...).
		Values(
			pc.Signature,
			pc.Slot,
			pc.TokenX,
			pc.TokenY,
			pc.LbPair,
			pc.TokenXName,
			pc.Symbol,
			pc.QuoteMint,
			pc.QuoteFallback,
			pc.Strategy,
			pc.Verified,
			pc.DetectedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = s.pool.Exec(ctx, query, args...)
	return translateError("insert pool creation", err)
}

// GetBySignature retrieves a record by signature. Returns ErrNotFound if not exists.
func (s *PoolCreationStore) GetBySignature(ctx context.Context, signature string) (*domain.PoolCreation, error) {
	query, args, err := psql.Select(poolCreationColumns...).
		From(poolCreationsTable).
		Where(sq.Eq{"signature": signature}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	pc, err := scanPoolCreation(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateError("get pool creation by signature", err)
	}
	return pc, nil
}

// ListRecent returns up to limit records ordered by detected_at DESC, signature ASC.
func (s *PoolCreationStore) ListRecent(ctx context.Context, limit int) ([]*domain.PoolCreation, error) {
	query, args, err := psql.Select(poolCreationColumns...).
		From(poolCreationsTable).
		OrderBy("detected_at DESC", "signature ASC").
		Limit(uint64(storage.NormalizeLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pool creations: %w", err)
	}
	defer rows.Close()

	var result []*domain.PoolCreation
	for rows.Next() {
		pc, err := scanPoolCreation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool creation: %w", err)
		}
		result = append(result, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool creations: %w", err)
	}
	return result, nil
}

// scanPoolCreation scans a single row into PoolCreation.
func scanPoolCreation(row pgx.Row) (*domain.PoolCreation, error) {
	var pc domain.PoolCreation

	err := row.Scan(
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
	if err != nil {
		return nil, err
	}

	return &pc, nil
}
