// Package metadata resolves display names and symbols for token mints.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"dlmm-notifier/internal/domain"
)

// Info holds display metadata for a mint.
// Empty fields mean the source had no value.
type Info struct {
	Name   string
	Symbol string
}

// Complete reports whether both fields are set.
func (i Info) Complete() bool {
	return i.Name != "" && i.Symbol != ""
}

// WithDefaults returns i with missing fields replaced by "Unknown".
func WithDefaults(i Info) Info {
	if i.Name == "" {
		i.Name = domain.UnknownLabel
	}
	if i.Symbol == "" {
		i.Symbol = domain.UnknownLabel
	}
	return i
}

// Resolver looks up display metadata for a mint.
type Resolver interface {
	// Resolve returns the metadata known for mint.
	// A mint the source does not know yields an empty Info and a nil error.
	Resolve(ctx context.Context, mint string) (Info, error)
}

// ChainResolver queries resolvers in order and merges their answers.
// A field set by an earlier resolver is never overwritten.
// Resolution stops as soon as both fields are known.
type ChainResolver struct {
	resolvers []Resolver
}

// NewChainResolver creates a resolver that tries each of resolvers in order.
func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

var _ Resolver = (*ChainResolver)(nil)

// Resolve merges answers from the chained resolvers.
// An error is returned only when every resolver failed.
func (c *ChainResolver) Resolve(ctx context.Context, mint string) (Info, error) {
	var (
		info Info
		errs []error
	)

	for _, r := range c.resolvers {
		got, err := r.Resolve(ctx, mint)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.Name == "" {
			info.Name = got.Name
		}
		if info.Symbol == "" {
			info.Symbol = got.Symbol
		}
		if info.Complete() {
			return info, nil
		}
	}

	if len(errs) > 0 && len(errs) == len(c.resolvers) {
		return Info{}, fmt.Errorf("resolve %s: %w", mint, errors.Join(errs...))
	}
	return info, nil
}
