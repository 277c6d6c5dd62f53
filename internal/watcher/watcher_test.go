package watcher

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlmm-notifier/internal/dedup"
	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/extraction"
	"dlmm-notifier/internal/metadata"
	"dlmm-notifier/internal/solana"
	"dlmm-notifier/internal/solana/stub"
	"dlmm-notifier/internal/storage"
	"dlmm-notifier/internal/storage/memory"
)

const markerLine = "Program log: Instruction: InitializeCustomizablePermissionlessLbPair"

type fakeExtractor struct {
	mu       sync.Mutex
	calls    []string
	err      error
	failOnce error
	done     chan string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{done: make(chan string, 16)}
}

func (f *fakeExtractor) Extract(_ context.Context, signature string) (*domain.PoolCreation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, signature)
	failOnce := f.failOnce
	f.failOnce = nil
	f.mu.Unlock()
	defer func() { f.done <- signature }()

	if failOnce != nil {
		return nil, failOnce
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PoolCreation{Signature: signature, TokenX: "Mint" + signature, LbPair: "Pool" + signature, TokenY: domain.QuoteUSDC}, nil
}

func (f *fakeExtractor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingNotifier struct {
	err  error
	sent chan *domain.PoolCreation
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan *domain.PoolCreation, 16)}
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, pc *domain.PoolCreation) error {
	r.sent <- pc
	return r.err
}

type failingStore struct{ storage.PoolCreationStore }

func (failingStore) Insert(context.Context, *domain.PoolCreation) error {
	return errors.New("db down")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	return cfg
}

func staticDialer(ws *stub.WSClient) Dialer {
	return func(context.Context) (solana.WSClient, error) { return ws, nil }
}

// startWatcher runs w in the background and returns a stop function that
// cancels it and returns the Run error.
func startWatcher(t *testing.T, w *Watcher) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
			return nil
		}
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}

func TestContainsMarker(t *testing.T) {
	assert.True(t, ContainsMarker([]string{"Program invoke [1]", markerLine}, domain.PoolCreationMarker))
	assert.False(t, ContainsMarker([]string{"Program log: Instruction: Swap"}, domain.PoolCreationMarker))
	assert.False(t, ContainsMarker(nil, domain.PoolCreationMarker))
}

func TestWatcher_OnlyMarkedTransactionsAreExtracted(t *testing.T) {
	ws := stub.NewWSClient(16)
	extractor := newFakeExtractor()
	notifier := newRecordingNotifier()

	stop := startWatcher(t, New(testConfig(), staticDialer(ws), extractor, notifier))

	ws.Push(solana.LogNotification{Signature: "swap", Logs: []string{"Program log: Instruction: Swap"}})
	ws.Push(solana.LogNotification{Signature: "empty"})
	ws.Push(solana.LogNotification{Signature: "failed", Logs: []string{markerLine}, Err: map[string]interface{}{"InstructionError": 0}})
	ws.Push(solana.LogNotification{Signature: "create", Logs: []string{"Program invoke [1]", markerLine}})

	assert.Equal(t, "create", waitFor(t, extractor.done))
	assert.Equal(t, "create", waitFor(t, notifier.sent).Signature)

	require.NoError(t, stop())
	assert.Equal(t, []string{"create"}, extractor.Calls())

	require.Len(t, ws.Filters, 1)
	assert.Equal(t, []string{domain.DLMMProgramID}, ws.Filters[0].Mentions)
}

func TestWatcher_ExtractionFailureSkipsNotification(t *testing.T) {
	ws := stub.NewWSClient(16)
	extractor := newFakeExtractor()
	extractor.err = extraction.ErrNoAccountKeys
	notifier := newRecordingNotifier()

	stop := startWatcher(t, New(testConfig(), staticDialer(ws), extractor, notifier))

	ws.Push(solana.LogNotification{Signature: "bad", Logs: []string{markerLine}})
	waitFor(t, extractor.done)

	require.NoError(t, stop())
	assert.Empty(t, notifier.sent)
}

func TestWatcher_EndToEnd(t *testing.T) {
	keys := make([]string, 13)
	for i := range keys {
		keys[i] = "Filler"
	}
	keys[3] = "PoolAddrXYZ"
	keys[9] = "TokenMintABC"
	keys[12] = domain.WSOLMint

	rpc := stub.NewRPCClient()
	rpc.AddTransaction("sig1", 99, keys)

	extractor := extraction.NewExtractor(rpc, extraction.NewPositionalStrategy(), metadata.NewDASResolver(rpc), nil)
	ws := stub.NewWSClient(4)
	notifier := newRecordingNotifier()
	store := memory.NewPoolCreationStore()

	stop := startWatcher(t, New(testConfig(), staticDialer(ws), extractor, notifier, WithStore("memory", store)))
	ws.Push(solana.LogNotification{Signature: "sig1", Slot: 99, Logs: []string{markerLine}})

	pc := waitFor(t, notifier.sent)
	require.NoError(t, stop())

	assert.Equal(t, "TokenMintABC", pc.TokenX)
	assert.Equal(t, domain.QuoteSOL, pc.TokenY)
	assert.Equal(t, "PoolAddrXYZ", pc.LbPair)
	assert.Equal(t, domain.UnknownLabel, pc.TokenXName)
	assert.Equal(t, domain.UnknownLabel, pc.Symbol)

	stored, err := store.GetBySignature(context.Background(), "sig1")
	require.NoError(t, err)
	assert.Equal(t, pc, stored)
}

func TestWatcher_StoreFailureDoesNotBlockNotification(t *testing.T) {
	ws := stub.NewWSClient(4)
	extractor := newFakeExtractor()
	notifier := newRecordingNotifier()

	stop := startWatcher(t, New(testConfig(), staticDialer(ws), extractor, notifier, WithStore("failing", failingStore{})))
	ws.Push(solana.LogNotification{Signature: "sig1", Logs: []string{markerLine}})

	assert.Equal(t, "sig1", waitFor(t, notifier.sent).Signature)
	require.NoError(t, stop())
}

func TestWatcher_Dedup(t *testing.T) {
	ws := stub.NewWSClient(16)
	extractor := newFakeExtractor()
	notifier := newRecordingNotifier()
	cfg := testConfig()
	cfg.MaxInFlight = 1

	stop := startWatcher(t, New(cfg, staticDialer(ws), extractor, notifier, WithDeduper(dedup.NewMemory(time.Hour))))

	ws.Push(solana.LogNotification{Signature: "dup", Logs: []string{markerLine}})
	ws.Push(solana.LogNotification{Signature: "dup", Logs: []string{markerLine}})
	ws.Push(solana.LogNotification{Signature: "other", Logs: []string{markerLine}})

	waitFor(t, extractor.done)
	waitFor(t, extractor.done)
	require.NoError(t, stop())

	assert.Equal(t, []string{"dup", "other"}, extractor.Calls())
}

func TestWatcher_ExtractionFailureReleasesDedupMark(t *testing.T) {
	ws := stub.NewWSClient(16)
	extractor := newFakeExtractor()
	extractor.failOnce = errors.New("transaction not yet available")
	notifier := newRecordingNotifier()
	cfg := testConfig()
	cfg.MaxInFlight = 1

	stop := startWatcher(t, New(cfg, staticDialer(ws), extractor, notifier, WithDeduper(dedup.NewMemory(time.Hour))))

	ws.Push(solana.LogNotification{Signature: "retry", Logs: []string{markerLine}})
	waitFor(t, extractor.done)
	ws.Push(solana.LogNotification{Signature: "retry", Logs: []string{markerLine}})

	assert.Equal(t, "retry", waitFor(t, notifier.sent).Signature)
	require.NoError(t, stop())
	assert.Equal(t, []string{"retry", "retry"}, extractor.Calls())
}

func TestWatcher_WithoutDedupDeliversRepeats(t *testing.T) {
	ws := stub.NewWSClient(16)
	extractor := newFakeExtractor()
	notifier := newRecordingNotifier()

	stop := startWatcher(t, New(testConfig(), staticDialer(ws), extractor, notifier))

	ws.Push(solana.LogNotification{Signature: "dup", Logs: []string{markerLine}})
	ws.Push(solana.LogNotification{Signature: "dup", Logs: []string{markerLine}})

	waitFor(t, notifier.sent)
	waitFor(t, notifier.sent)
	require.NoError(t, stop())
}

func TestWatcher_RetryExhausted(t *testing.T) {
	var dials int
	dialErr := errors.New("connection refused")
	dial := func(context.Context) (solana.WSClient, error) {
		dials++
		return nil, dialErr
	}

	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 3, InitialDelay: 5 * time.Second, MaxDelay: time.Minute, Multiplier: 2}

	w := New(cfg, dial, newFakeExtractor(), newRecordingNotifier())
	var delays []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 3, dials)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestWatcher_SubscribeErrorIsRetried(t *testing.T) {
	ws := stub.NewWSClient(1)
	ws.SubscribeErr = errors.New("rate limited")

	cfg := testConfig()
	cfg.Retry.MaxAttempts = 2
	w := New(cfg, staticDialer(ws), newFakeExtractor(), newRecordingNotifier())
	w.sleep = func(context.Context, time.Duration) error { return nil }

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestWatcher_FailureCountResetsAfterSubscription(t *testing.T) {
	var dials int
	dial := func(context.Context) (solana.WSClient, error) {
		dials++
		if dials == 2 {
			ws := stub.NewWSClient(1)
			// Subscription succeeds, then the channel closes.
			ws.Close()
			return ws, nil
		}
		return nil, errors.New("dial failed")
	}

	cfg := testConfig()
	cfg.Retry.MaxAttempts = 2
	w := New(cfg, dial, newFakeExtractor(), newRecordingNotifier())
	w.sleep = func(context.Context, time.Duration) error { return nil }

	err := w.Run(context.Background())
	require.Error(t, err)
	// fail, subscribe (reset), fail; without the reset the second dial would be the last.
	assert.Equal(t, 3, dials)
}

func TestWatcher_CancelStopsRetrying(t *testing.T) {
	dial := func(context.Context) (solana.WSClient, error) {
		return nil, errors.New("dial failed")
	}
	cfg := testConfig()
	cfg.Retry = RetryPolicy{InitialDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, dial, newFakeExtractor(), newRecordingNotifier()).Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, waitFor(t, done))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}

	assert.Equal(t, 5*time.Second, p.Delay(0))
	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 10*time.Second, p.Delay(2))
	assert.Equal(t, 20*time.Second, p.Delay(3))
	assert.Equal(t, 30*time.Second, p.Delay(4))
	assert.Equal(t, 30*time.Second, p.Delay(100))

	fixed := RetryPolicy{InitialDelay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, fixed.Delay(7))
}

func TestRetryPolicy_DelayIsBounded(t *testing.T) {
	uncapped := RetryPolicy{InitialDelay: time.Second, Multiplier: 10}
	assert.Equal(t, 10*time.Second, uncapped.Delay(2))
	for _, failures := range []int{20, 64, 1000, math.MaxInt32} {
		d := uncapped.Delay(failures)
		assert.Equal(t, delayCeiling, d, "failures=%d", failures)
	}

	huge := RetryPolicy{InitialDelay: time.Duration(math.MaxInt64), Multiplier: 2, MaxDelay: time.Minute}
	assert.Equal(t, time.Minute, huge.Delay(3))

	assert.Equal(t, time.Duration(0), RetryPolicy{InitialDelay: -time.Second}.Delay(2))
	assert.Equal(t, time.Second, RetryPolicy{InitialDelay: time.Second, Multiplier: math.NaN()}.Delay(5))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	assert.False(t, RetryPolicy{}.Exhausted(1000), "zero means unlimited")
	assert.False(t, RetryPolicy{MaxAttempts: 3}.Exhausted(2))
	assert.True(t, RetryPolicy{MaxAttempts: 3}.Exhausted(3))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5*time.Second, p.InitialDelay)
	assert.Greater(t, p.MaxAttempts, 0)
}

func TestWatcher_DroppedSessionReportsCause(t *testing.T) {
	ws := stub.NewWSClient(1)
	ws.Drop(errors.New("connection reset by peer"))

	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	w := New(cfg, staticDialer(ws), newFakeExtractor(), newRecordingNotifier())
	w.sleep = func(context.Context, time.Duration) error { return nil }

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
	assert.Contains(t, err.Error(), "connection reset by peer")
}
