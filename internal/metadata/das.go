package metadata

import (
	"context"
	"fmt"
	"strings"

	"dlmm-notifier/internal/solana"
)

// DASResolver reads metadata through the DAS getAsset method.
type DASResolver struct {
	client solana.AssetClient
}

// NewDASResolver creates a resolver backed by client.
func NewDASResolver(client solana.AssetClient) *DASResolver {
	return &DASResolver{client: client}
}

var _ Resolver = (*DASResolver)(nil)

// Resolve returns the name and symbol of the asset content metadata.
func (r *DASResolver) Resolve(ctx context.Context, mint string) (Info, error) {
	asset, err := r.client.GetAsset(ctx, mint)
	if err != nil {
		return Info{}, fmt.Errorf("get asset: %w", err)
	}
	return Info{
		Name:   strings.TrimSpace(asset.Name()),
		Symbol: strings.TrimSpace(asset.Symbol()),
	}, nil
}
