package extraction

import (
	"context"
	"fmt"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/solana"
)

// ScanStrategy finds the pool by owner lookups instead of fixed offsets.
//
// The pool is the closest key before the System program whose owner is the
// DLMM program. TokenX is the key right after the SPL Token program. The
// quote is the first USDC or wrapped SOL mint among the keys.
type ScanStrategy struct {
	rpc       solana.RPCClient
	programID string
}

// NewScanStrategy creates a scan strategy verifying ownership against programID.
func NewScanStrategy(rpc solana.RPCClient, programID string) *ScanStrategy {
	return &ScanStrategy{rpc: rpc, programID: programID}
}

var _ Strategy = (*ScanStrategy)(nil)

// Name implements Strategy.
func (s *ScanStrategy) Name() string { return StrategyScan }

// Locate implements Strategy.
func (s *ScanStrategy) Locate(ctx context.Context, keys []string) (Accounts, error) {
	if len(keys) == 0 {
		return Accounts{}, ErrNoAccountKeys
	}

	systemIdx := indexOf(keys, domain.SystemProgramID)
	if systemIdx < 0 {
		return Accounts{}, ErrSystemProgramNotFound
	}

	tokenIdx := indexOf(keys, domain.TokenProgramID)
	if tokenIdx < 0 || tokenIdx+1 >= len(keys) {
		return Accounts{}, ErrTokenProgramNotFound
	}
	tokenX := keys[tokenIdx+1]

	lbPair, err := s.findPool(ctx, keys[:systemIdx])
	if err != nil {
		return Accounts{}, err
	}

	var quote string
	for _, k := range keys {
		if k != tokenX && domain.IsQuoteMint(k) {
			quote = k
			break
		}
	}

	return Accounts{
		LbPair:    lbPair,
		TokenX:    tokenX,
		QuoteMint: quote,
		Verified:  true,
		Strategy:  StrategyScan,
	}, nil
}

// findPool walks candidates backwards and returns the first program-owned key.
func (s *ScanStrategy) findPool(ctx context.Context, candidates []string) (string, error) {
	for i := len(candidates) - 1; i >= 0; i-- {
		key := candidates[i]
		info, err := s.rpc.GetAccountInfo(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: get account %s: %v", ErrVerificationUnavailable, key, err)
		}
		if info != nil && info.Owner == s.programID {
			return key, nil
		}
	}
	return "", ErrPoolNotFound
}
