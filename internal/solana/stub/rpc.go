package stub

import (
	"context"
	"errors"
	"sync"

	"dlmm-notifier/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient and solana.AssetClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Accounts     map[string]*solana.AccountInfo
	Assets       map[string]*solana.Asset

	// AccountErr, when set, is returned by every GetAccountInfo call.
	AccountErr error
	// AssetErr, when set, is returned by every GetAsset call.
	AssetErr error

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Accounts:     make(map[string]*solana.AccountInfo),
		Assets:       make(map[string]*solana.Asset),
		calls:        make(map[string]int),
	}
}

var (
	_ solana.RPCClient   = (*RPCClient)(nil)
	_ solana.AssetClient = (*RPCClient)(nil)
)

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getTransaction"]++

	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetAccountInfo returns the stored account or nil when unknown.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getAccountInfo"]++

	if c.AccountErr != nil {
		return nil, c.AccountErr
	}
	return c.Accounts[pubkey], nil
}

// GetAsset returns the stored asset or nil when unknown.
func (c *RPCClient) GetAsset(_ context.Context, id string) (*solana.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getAsset"]++

	if c.AssetErr != nil {
		return nil, c.AssetErr
	}
	return c.Assets[id], nil
}

// AddTransaction adds a transaction with the given static account keys.
func (c *RPCClient) AddTransaction(signature string, slot int64, accountKeys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[signature] = &solana.Transaction{
		Slot:      slot,
		Signature: signature,
		Message:   &solana.TransactionMessage{AccountKeys: accountKeys},
	}
}

// AddAccount registers an account owned by owner.
func (c *RPCClient) AddAccount(pubkey, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &solana.AccountInfo{Owner: owner}
}

// AddAsset registers display metadata for a mint.
func (c *RPCClient) AddAsset(mint, name, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Assets[mint] = &solana.Asset{
		ID:      mint,
		Content: &solana.AssetContent{Metadata: solana.AssetMetadata{Name: name, Symbol: symbol}},
	}
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}
