package stub

import (
	"context"
	"sync"

	"dlmm-notifier/internal/solana"
)

// WSClient implements solana.WSClient over an in-memory channel.
type WSClient struct {
	mu           sync.Mutex
	ch           chan solana.LogNotification
	closed       bool
	cause        error
	Filters      []solana.LogsFilter
	SubscribeErr error
}

// NewWSClient creates a stub subscription client with the given buffer size.
func NewWSClient(buffer int) *WSClient {
	return &WSClient{ch: make(chan solana.LogNotification, buffer)}
}

var _ solana.WSClient = (*WSClient)(nil)

// SubscribeLogs records the filter and returns the shared notification channel.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	c.Filters = append(c.Filters, filter)
	return c.ch, nil
}

// Push delivers a notification to subscribers.
func (c *WSClient) Push(n solana.LogNotification) {
	c.ch <- n
}

// Drop ends the session as a lost connection would, with cause reported by Err.
func (c *WSClient) Drop(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.cause = cause
		c.closed = true
		close(c.ch)
	}
}

// Err returns the cause passed to Drop.
func (c *WSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// Close closes the notification channel. Safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}
