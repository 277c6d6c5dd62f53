package solana

import "context"

// WSClient is one subscription session on a Solana pubsub endpoint.
type WSClient interface {
	// SubscribeLogs starts logsSubscribe for filter. The returned channel is
	// closed when the session ends, for any reason.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Err reports why the session ended, or nil while it is open or after Close.
	Err() error

	// Close ends the session.
	Close() error
}

// LogsFilter selects the transactions a logs subscription delivers.
// An empty filter subscribes to all transactions.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification is one logsNotification payload.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	// Err is the transaction error, nil when the transaction succeeded.
	Err interface{}
}

// Failed reports whether the notified transaction errored.
func (n LogNotification) Failed() bool {
	return n.Err != nil
}
