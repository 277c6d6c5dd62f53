package solana

// Commitment levels accepted by the RPC and subscription endpoints.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Asset is the part of a DAS getAsset response the notifier reads.
type Asset struct {
	ID        string        `json:"id"`
	Interface string        `json:"interface"`
	Content   *AssetContent `json:"content"`
}

// AssetContent holds off-chain and on-chain display data of an asset.
type AssetContent struct {
	JSONURI  string        `json:"json_uri"`
	Metadata AssetMetadata `json:"metadata"`
}

// AssetMetadata holds display name and ticker.
type AssetMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Name returns the asset display name or "" when absent.
func (a *Asset) Name() string {
	if a == nil || a.Content == nil {
		return ""
	}
	return a.Content.Metadata.Name
}

// Symbol returns the asset symbol or "" when absent.
func (a *Asset) Symbol() string {
	if a == nil || a.Content == nil {
		return ""
	}
	return a.Content.Metadata.Symbol
}
