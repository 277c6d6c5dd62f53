package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"dlmm-notifier/internal/solana"
)

// MetaplexProgramID is the Metaplex Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// metadataV1Key is the account discriminator of MetadataV1.
const metadataV1Key = 4

// MetaplexResolver reads the on-chain Metaplex metadata account of a mint.
type MetaplexResolver struct {
	rpc solana.RPCClient
}

// NewMetaplexResolver creates a resolver that reads metadata accounts via rpc.
func NewMetaplexResolver(rpc solana.RPCClient) *MetaplexResolver {
	return &MetaplexResolver{rpc: rpc}
}

var _ Resolver = (*MetaplexResolver)(nil)

// Resolve derives the metadata PDA of mint and decodes name and symbol.
// Mints without a metadata account resolve to an empty Info.
func (r *MetaplexResolver) Resolve(ctx context.Context, mint string) (Info, error) {
	pda, err := MetadataPDA(mint)
	if err != nil {
		return Info{}, err
	}

	account, err := r.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return Info{}, fmt.Errorf("get metadata account: %w", err)
	}
	if account == nil || account.Owner != MetaplexProgramID {
		return Info{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(account.Data)
	if err != nil {
		return Info{}, fmt.Errorf("decode metadata account: %w", err)
	}
	return parseMetadataAccount(data), nil
}

// MetadataPDA derives the Metaplex metadata address of mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint %q: %w", mint, err)
	}
	if len(mintBytes) != 32 {
		return "", fmt.Errorf("mint %q: expected 32 bytes, got %d", mint, len(mintBytes))
	}
	programBytes, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	pda := findProgramAddress([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for mint %q", mint)
	}
	return pda, nil
}

// findProgramAddress searches bumps from 255 down for an off-curve address.
func findProgramAddress(seeds [][]byte, programID []byte) string {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte("ProgramDerivedAddress"))
		hash := h.Sum(nil)

		if !isOnCurve(hash) {
			return base58.Encode(hash)
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// parseMetadataAccount decodes name and symbol of a MetadataV1 account.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: borsh string (u32 length + bytes, padded with NUL)
// - symbol: borsh string
// Truncated or foreign data yields whatever was decoded before the problem.
func parseMetadataAccount(data []byte) Info {
	var info Info
	if len(data) < 65 || data[0] != metadataV1Key {
		return info
	}

	offset := 65
	name, offset, ok := readBorshString(data, offset, 100)
	if !ok {
		return info
	}
	info.Name = name

	symbol, _, ok := readBorshString(data, offset, 20)
	if !ok {
		return info
	}
	info.Symbol = symbol
	return info
}

func readBorshString(data []byte, offset, maxLen int) (string, int, bool) {
	if offset+4 > len(data) {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(data) {
		return "", offset, false
	}
	s := strings.TrimSpace(strings.TrimRight(string(data[offset:offset+n]), "\x00"))
	return s, offset + n, true
}
