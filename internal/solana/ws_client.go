package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by operations on a closed WSClientImpl.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures one WebSocket session.
type WSClientConfig struct {
	// Commitment is the commitment level requested for log subscriptions.
	Commitment string
	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
	// PingInterval is the interval between ping frames. The read deadline is
	// extended on every pong, so it must be shorter than ReadTimeout.
	PingInterval time.Duration
	// ReadTimeout closes the session when nothing (data or pong) arrives in time.
	ReadTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// Buffer is the capacity of each subscription channel.
	Buffer int
	// Logger receives connection diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		Commitment:       CommitmentFinalized,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		Buffer:           1024,
	}
}

// withDefaults fills zero fields from DefaultWSConfig.
func (c WSClientConfig) withDefaults() WSClientConfig {
	def := DefaultWSConfig()
	if c.Commitment == "" {
		c.Commitment = def.Commitment
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = def.SubscribeTimeout
	}
	if c.Buffer <= 0 {
		c.Buffer = def.Buffer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// WSClientImpl is a single logsSubscribe session over gorilla/websocket.
// It never reconnects: when the connection drops every subscription channel is
// closed and Err reports the cause, so the owner can dial a fresh session.
type WSClientImpl struct {
	config WSClientConfig
	logger *zap.Logger

	conn      *websocket.Conn
	writeMu   sync.Mutex
	requestID atomic.Uint64

	subsMu sync.RWMutex
	subs   map[int64]chan LogNotification

	pendingMu sync.Mutex
	pending   map[uint64]chan subscribeResult

	done      chan struct{}
	closeOnce sync.Once
	cause     atomic.Pointer[error]
	wg        sync.WaitGroup
}

type subscribeResult struct {
	id  int64
	ch  chan LogNotification
	err error
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient dials endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	var cfg WSClientConfig
	if config != nil {
		cfg = *config
	}
	cfg = cfg.withDefaults()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSClientImpl{
		config:  cfg,
		logger:  cfg.Logger,
		conn:    conn,
		subs:    make(map[int64]chan LogNotification),
		pending: make(map[uint64]chan subscribeResult),
		done:    make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// SubscribeLogs sends logsSubscribe and returns the channel of matching notifications.
// The channel is closed when the session ends.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if c.isClosed() {
		return nil, c.closedErr()
	}

	reqID := c.requestID.Add(1)
	result := make(chan subscribeResult, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = result
	c.pendingMu.Unlock()
	defer c.abandon(reqID, result)

	if err := c.write(logsSubscribeRequest(reqID, filter, c.config.Commitment)); err != nil {
		return nil, fmt.Errorf("write logsSubscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	var res subscribeResult
	select {
	case res = <-result:
	case <-timer.C:
		return nil, fmt.Errorf("logsSubscribe not confirmed after %v", c.config.SubscribeTimeout)
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("logsSubscribe: %w", res.err)
	}

	c.logger.Debug("logs subscription confirmed",
		zap.Int64("subscription", res.id),
		zap.Strings("mentions", filter.Mentions),
	)
	return res.ch, nil
}

// abandon removes the pending request. A subscription registered for a reply
// nobody received is dropped so it cannot fill up and stall the read loop.
func (c *WSClientImpl) abandon(reqID uint64, result chan subscribeResult) {
	c.pendingMu.Lock()
	delete(c.pending, reqID)
	c.pendingMu.Unlock()

	select {
	case res := <-result:
		if res.err == nil {
			c.unsubscribe(res.id)
		}
	default:
	}
}

func (c *WSClientImpl) unsubscribe(id int64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// Close ends the session and waits for the loops to exit. Safe to call twice.
func (c *WSClientImpl) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

// Err returns the error that ended the session, or nil if it is open or was closed by Close.
func (c *WSClientImpl) Err() error {
	if p := c.cause.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *WSClientImpl) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *WSClientImpl) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrClientClosed, err)
	}
	return ErrClientClosed
}

// shutdown is safe to call from inside the loops.
func (c *WSClientImpl) shutdown(cause error) {
	c.closeOnce.Do(func() {
		if cause != nil {
			c.cause.Store(&cause)
		}
		close(c.done)

		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()

		c.subsMu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.subsMu.Unlock()
	})
}

func (c *WSClientImpl) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("websocket session ended", zap.Error(err))
				c.shutdown(err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.handleMessage(message)
	}
}

func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
			}
		}
	}
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("undecodable websocket message", zap.Error(err))
		return
	}

	switch {
	case msg.Method == "logsNotification" && msg.Params != nil:
		c.dispatch(msg.Params)
	case msg.ID != nil:
		c.resolve(*msg.ID, msg)
	}
}

// resolve hands a subscribe reply to the waiting SubscribeLogs call. It runs on
// the read goroutine and registers the subscription before returning, so a
// notification in the very next frame already has somewhere to go.
func (c *WSClientImpl) resolve(id uint64, msg wsMessage) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	result, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)

	var res subscribeResult
	switch {
	case msg.Error != nil:
		res.err = msg.Error
	default:
		if err := json.Unmarshal(msg.Result, &res.id); err != nil {
			res.err = fmt.Errorf("decode subscription id: %w", err)
		} else {
			res.ch, res.err = c.register(res.id)
		}
	}
	result <- res
}

// register creates the channel for subscription id.
func (c *WSClientImpl) register(id int64) (chan LogNotification, error) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.isClosed() {
		return nil, c.closedErr()
	}
	ch := make(chan LogNotification, c.config.Buffer)
	c.subs[id] = ch
	return ch, nil
}

func (c *WSClientImpl) dispatch(params *wsNotificationParams) {
	n := LogNotification{
		Signature: params.Result.Value.Signature,
		Slot:      params.Result.Context.Slot,
		Logs:      params.Result.Value.Logs,
		Err:       params.Result.Value.Err,
	}

	// The read lock keeps shutdown from closing ch mid-send.
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	ch, ok := c.subs[params.Subscription]
	if !ok {
		c.logger.Debug("notification for unknown subscription",
			zap.Int64("subscription", params.Subscription))
		return
	}
	select {
	case ch <- n:
	case <-c.done:
	}
}

func logsSubscribeRequest(id uint64, filter LogsFilter, commitment string) wsRequest {
	var mentions interface{} = "all"
	if len(filter.Mentions) > 0 {
		mentions = map[string][]string{"mentions": filter.Mentions}
	}
	return wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": commitment},
		},
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage covers replies ({id, result|error}) and notifications ({method, params}).
type wsMessage struct {
	ID     *uint64               `json:"id"`
	Result json.RawMessage       `json:"result"`
	Error  *RPCError             `json:"error"`
	Method string                `json:"method"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
