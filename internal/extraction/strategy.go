// Package extraction locates the accounts of a DLMM pool creation inside a
// transaction and assembles the notification record.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/solana"
)

// Strategy names.
const (
	StrategyScan       = "scan"
	StrategyPositional = "positional"
	StrategyAuto       = "auto"
)

// Positional layout of InitializeCustomizablePermissionlessLbPair.
const (
	PositionLbPair = 3
	PositionTokenX = 9
	PositionQuote  = 12
)

var (
	// ErrNoAccountKeys is returned when a transaction or its account keys are missing.
	ErrNoAccountKeys = errors.New("transaction has no account keys")

	// ErrTooFewAccounts is returned when the account list is shorter than the layout requires.
	ErrTooFewAccounts = errors.New("too few account keys")

	// ErrSystemProgramNotFound is returned when the scan sentinel is absent.
	ErrSystemProgramNotFound = errors.New("system program not found in account keys")

	// ErrTokenProgramNotFound is returned when no key follows the SPL Token program.
	ErrTokenProgramNotFound = errors.New("token program not found in account keys")

	// ErrPoolNotFound is returned when no candidate is owned by the DLMM program.
	ErrPoolNotFound = errors.New("no account owned by the DLMM program")

	// ErrVerificationUnavailable is returned when account owners cannot be read.
	ErrVerificationUnavailable = errors.New("owner verification unavailable")

	// ErrUnknownStrategy is returned by NewStrategy for unsupported names.
	ErrUnknownStrategy = errors.New("unknown extraction strategy")
)

// Accounts are the addresses a strategy located.
type Accounts struct {
	LbPair string
	TokenX string
	// QuoteMint is the quote candidate, empty when the strategy found none.
	QuoteMint string
	// Verified reports whether LbPair is known to be owned by the DLMM program.
	Verified bool
	// Strategy names the strategy that produced the result.
	Strategy string
}

// Strategy locates pool accounts in the static account keys of a transaction.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string

	// Locate returns the pool accounts found in keys.
	Locate(ctx context.Context, keys []string) (Accounts, error)
}

// NewStrategy returns the strategy configured by name.
func NewStrategy(name string, rpc solana.RPCClient, logger *zap.Logger) (Strategy, error) {
	switch name {
	case StrategyScan, "":
		return NewScanStrategy(rpc, domain.DLMMProgramID), nil
	case StrategyPositional:
		return NewPositionalStrategy(), nil
	case StrategyAuto:
		return NewFallbackStrategy(NewScanStrategy(rpc, domain.DLMMProgramID), NewPositionalStrategy(), logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
