package extraction

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FallbackStrategy uses primary and switches to secondary only when primary
// cannot verify account owners. Results from secondary are never marked verified.
type FallbackStrategy struct {
	primary   Strategy
	secondary Strategy
	logger    *zap.Logger
}

// NewFallbackStrategy creates a strategy that falls back from primary to secondary.
func NewFallbackStrategy(primary, secondary Strategy, logger *zap.Logger) *FallbackStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackStrategy{primary: primary, secondary: secondary, logger: logger}
}

var _ Strategy = (*FallbackStrategy)(nil)

// Name implements Strategy.
func (s *FallbackStrategy) Name() string { return StrategyAuto }

// Locate implements Strategy.
func (s *FallbackStrategy) Locate(ctx context.Context, keys []string) (Accounts, error) {
	accounts, err := s.primary.Locate(ctx, keys)
	if err == nil || !errors.Is(err, ErrVerificationUnavailable) {
		return accounts, err
	}

	s.logger.Warn("owner verification unavailable, using fallback strategy",
		zap.String("primary", s.primary.Name()),
		zap.String("fallback", s.secondary.Name()),
		zap.Error(err),
	)

	accounts, err = s.secondary.Locate(ctx, keys)
	if err != nil {
		return Accounts{}, err
	}
	accounts.Verified = false
	return accounts, nil
}
