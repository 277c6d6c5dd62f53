package extraction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/metadata"
	"dlmm-notifier/internal/observability"
	"dlmm-notifier/internal/solana"
)

// Extractor turns a pool creation signature into a PoolCreation record.
type Extractor struct {
	rpc      solana.RPCClient
	strategy Strategy
	resolver metadata.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor.
func NewExtractor(rpc solana.RPCClient, strategy Strategy, resolver metadata.Resolver, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		rpc:      rpc,
		strategy: strategy,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Extract fetches the transaction, locates the pool accounts and resolves
// display metadata for TokenX. Any failure is returned; callers drop the event.
func (e *Extractor) Extract(ctx context.Context, signature string) (pc *domain.PoolCreation, err error) {
	start := e.now()
	strategyName := e.strategy.Name()
	defer func() {
		if pc != nil {
			strategyName = pc.Strategy
		}
		observability.RecordExtraction(strategyName, err, time.Since(start).Seconds())
	}()

	tx, err := e.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}

	keys := tx.AccountKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", signature, ErrNoAccountKeys)
	}

	accounts, err := e.strategy.Locate(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("locate accounts in %s: %w", signature, err)
	}

	tokenY, fallback := domain.QuoteSymbol(accounts.QuoteMint)
	if fallback {
		observability.RecordQuoteFallback()
		e.logger.Warn("unrecognised quote mint, labelling as USDC",
			zap.String("signature", signature),
			zap.String("quote_mint", accounts.QuoteMint),
			zap.String("strategy", accounts.Strategy),
		)
	}

	info, err := e.resolver.Resolve(ctx, accounts.TokenX)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata for %s: %w", accounts.TokenX, err)
	}
	info = metadata.WithDefaults(info)

	return &domain.PoolCreation{
		Signature:     signature,
		Slot:          tx.Slot,
		TokenX:        accounts.TokenX,
		TokenY:        tokenY,
		LbPair:        accounts.LbPair,
		TokenXName:    info.Name,
		Symbol:        info.Symbol,
		QuoteMint:     accounts.QuoteMint,
		QuoteFallback: fallback,
		Strategy:      accounts.Strategy,
		Verified:      accounts.Verified,
		DetectedAt:    e.now().UnixMilli(),
	}, nil
}
