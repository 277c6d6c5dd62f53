package extraction

import (
	"context"
	"fmt"
)

// PositionalStrategy reads the pool accounts from fixed instruction offsets.
// It performs no network calls and no ownership verification.
type PositionalStrategy struct{}

// NewPositionalStrategy creates a positional strategy.
func NewPositionalStrategy() *PositionalStrategy {
	return &PositionalStrategy{}
}

var _ Strategy = (*PositionalStrategy)(nil)

// Name implements Strategy.
func (s *PositionalStrategy) Name() string { return StrategyPositional }

// Locate implements Strategy.
func (s *PositionalStrategy) Locate(_ context.Context, keys []string) (Accounts, error) {
	if len(keys) == 0 {
		return Accounts{}, ErrNoAccountKeys
	}
	if len(keys) <= PositionQuote {
		return Accounts{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewAccounts, len(keys), PositionQuote+1)
	}

	return Accounts{
		LbPair:    keys[PositionLbPair],
		TokenX:    keys[PositionTokenX],
		QuoteMint: keys[PositionQuote],
		Strategy:  StrategyPositional,
	}, nil
}
