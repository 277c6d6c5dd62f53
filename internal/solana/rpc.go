package solana

import "context"

// RPCClient defines the subset of Solana JSON-RPC used by the notifier.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil, nil when the node does not know the transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// AssetClient defines the Digital Asset Standard (DAS) read API.
type AssetClient interface {
	// GetAsset retrieves an asset by id (mint address).
	GetAsset(ctx context.Context, id string) (*Asset, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage contains parsed transaction message.
// AccountKeys holds the static account keys only; lookup-table keys are not included.
type TransactionMessage struct {
	AccountKeys []string
}

// AccountKeys returns the static account keys of tx, or nil if the message is missing.
func (tx *Transaction) AccountKeys() []string {
	if tx == nil || tx.Message == nil {
		return nil
	}
	return tx.Message.AccountKeys
}
