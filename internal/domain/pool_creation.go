package domain

// Well-known addresses involved in DLMM pool creation.
const (
	DLMMProgramID   = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	SystemProgramID = "11111111111111111111111111111111"
	TokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	USDCMint        = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	WSOLMint        = "So11111111111111111111111111111111111111112"

	// PoolCreationMarker identifies the pool creation instruction in program logs.
	PoolCreationMarker = "Instruction: InitializeCustomizablePermissionlessLbPair"

	// UnknownLabel replaces missing display metadata.
	UnknownLabel = "Unknown"
)

// Quote symbols.
const (
	QuoteUSDC = "USDC"
	QuoteSOL  = "SOL"
)

// PoolCreation represents a detected DLMM pool creation.
// Corresponds to pool_creations table in PostgreSQL and ClickHouse.
type PoolCreation struct {
	Signature     string `json:"signature"`      // PK: creating transaction
	Slot          int64  `json:"slot"`           // slot of the transaction
	TokenX        string `json:"token_x"`        // mint of the non-quote asset
	TokenY        string `json:"token_y"`        // quote symbol: USDC or SOL
	LbPair        string `json:"lb_pair"`        // pool account address
	TokenXName    string `json:"token_x_name"`   // display name or "Unknown"
	Symbol        string `json:"symbol"`         // display symbol or "Unknown"
	QuoteMint     string `json:"quote_mint"`     // raw quote candidate (empty when not read)
	QuoteFallback bool   `json:"quote_fallback"` // unrecognised quote labelled USDC
	Strategy      string `json:"strategy"`       // extraction strategy name
	Verified      bool   `json:"verified"`       // LbPair owner checked against program
	DetectedAt    int64  `json:"detected_at"`    // detection timestamp (ms)
}

// QuoteSymbol maps a quote mint to its display symbol.
// Any mint other than USDC or wrapped SOL is labelled USDC and reported
// through the second return value.
func QuoteSymbol(mint string) (symbol string, fallback bool) {
	switch mint {
	case USDCMint:
		return QuoteUSDC, false
	case WSOLMint:
		return QuoteSOL, false
	default:
		return QuoteUSDC, true
	}
}

// IsQuoteMint reports whether mint is a recognised quote asset.
func IsQuoteMint(mint string) bool {
	return mint == USDCMint || mint == WSOLMint
}
