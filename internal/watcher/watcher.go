// Package watcher subscribes to DLMM program logs and turns pool creation
// transactions into notifications.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dlmm-notifier/internal/dedup"
	"dlmm-notifier/internal/domain"
	"dlmm-notifier/internal/notify"
	"dlmm-notifier/internal/observability"
	"dlmm-notifier/internal/solana"
	"dlmm-notifier/internal/storage"
)

// ErrSubscriptionClosed is reported when the notification channel closes.
var ErrSubscriptionClosed = errors.New("subscription channel closed")

// Dialer opens a new subscription client.
type Dialer func(ctx context.Context) (solana.WSClient, error)

// Extractor turns a signature into a pool creation record.
type Extractor interface {
	Extract(ctx context.Context, signature string) (*domain.PoolCreation, error)
}

// Config configures a Watcher.
type Config struct {
	// ProgramID is the program whose logs are subscribed.
	ProgramID string
	// Marker is the log substring identifying a pool creation.
	Marker string
	// MaxInFlight bounds concurrent handlers. Zero means unbounded.
	MaxInFlight int
	// HandlerTimeout bounds one extraction plus delivery. Zero means no timeout.
	HandlerTimeout time.Duration
	// Retry governs re-establishing failed subscriptions.
	Retry RetryPolicy
}

// DefaultConfig returns the configuration for the Meteora DLMM program.
func DefaultConfig() Config {
	return Config{
		ProgramID: domain.DLMMProgramID,
		Marker:    domain.PoolCreationMarker,
		Retry:     DefaultRetryPolicy(),
	}
}

// Watcher consumes program logs and dispatches matching transactions.
type Watcher struct {
	cfg       Config
	dial      Dialer
	extractor Extractor
	notifier  notify.Notifier
	deduper   dedup.Deduper
	store     storage.PoolCreationStore
	storeName string
	logger    *zap.Logger

	sem   chan struct{}
	wg    sync.WaitGroup
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDeduper skips signatures the deduper has already seen.
func WithDeduper(d dedup.Deduper) Option {
	return func(w *Watcher) {
		w.deduper = d
	}
}

// WithStore records every extracted pool creation in store.
// name labels store errors in logs and metrics.
func WithStore(name string, store storage.PoolCreationStore) Option {
	return func(w *Watcher) {
		w.storeName = name
		w.store = store
	}
}

// New creates a Watcher.
func New(cfg Config, dial Dialer, extractor Extractor, notifier notify.Notifier, opts ...Option) *Watcher {
	w := &Watcher{
		cfg:       cfg,
		dial:      dial,
		extractor: extractor,
		notifier:  notifier,
		deduper:   dedup.Noop{},
		logger:    zap.NewNop(),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(w)
	}
	if cfg.MaxInFlight > 0 {
		w.sem = make(chan struct{}, cfg.MaxInFlight)
	}
	w.logger = w.logger.Named("watcher")
	return w
}

// Run subscribes and processes notifications until ctx is cancelled.
// Failed subscriptions are retried per the retry policy; the failure count
// resets after every successful subscription. Run returns nil on cancellation
// and an error once the retry policy is exhausted. In-flight handlers are
// awaited before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()

	failures := 0
	for {
		subscribed, err := w.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			failures = 0
		}
		failures++

		if w.cfg.Retry.Exhausted(failures) {
			w.logger.Error("subscription retries exhausted",
				zap.Int("attempts", failures),
				zap.Error(err),
			)
			return fmt.Errorf("subscription failed after %d attempts: %w", failures, err)
		}

		delay := w.cfg.Retry.Delay(failures)
		w.logger.Warn("subscription lost, retrying",
			zap.Int("failures", failures),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := w.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// session runs one subscription until it fails or ctx is cancelled.
// subscribed reports whether the subscription was established.
func (w *Watcher) session(ctx context.Context) (subscribed bool, err error) {
	client, err := w.dial(ctx)
	if err != nil {
		observability.RecordSubscriptionAttempt("error")
		return false, fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	notifications, err := client.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{w.cfg.ProgramID}})
	if err != nil {
		observability.RecordSubscriptionAttempt("error")
		return false, fmt.Errorf("subscribe logs: %w", err)
	}
	observability.RecordSubscriptionAttempt("ok")
	w.logger.Info("subscribed to program logs", zap.String("program", w.cfg.ProgramID))

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				if cause := client.Err(); cause != nil {
					return true, fmt.Errorf("%w: %v", ErrSubscriptionClosed, cause)
				}
				return true, ErrSubscriptionClosed
			}
			w.dispatch(ctx, n)
		}
	}
}

// ContainsMarker reports whether any log line contains marker.
func ContainsMarker(logs []string, marker string) bool {
	for _, line := range logs {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// dispatch starts a handler for notifications that carry the marker.
func (w *Watcher) dispatch(ctx context.Context, n solana.LogNotification) {
	observability.RecordLogNotification()

	if n.Failed() {
		w.logger.Debug("skipping failed transaction", zap.String("signature", n.Signature))
		return
	}
	if !ContainsMarker(n.Logs, w.cfg.Marker) {
		return
	}

	observability.RecordDetection()
	w.logger.Info("detected pool creation",
		zap.String("signature", n.Signature),
		zap.Int64("slot", n.Slot),
	)

	if w.sem != nil {
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if w.sem != nil {
			defer func() { <-w.sem }()
		}
		w.handle(ctx, n.Signature)
	}()
}

// handle extracts, records and delivers one pool creation.
// Every failure is logged and ends the handler without affecting others.
func (w *Watcher) handle(ctx context.Context, signature string) {
	observability.HandlerStarted()
	defer observability.HandlerFinished()

	logger := w.logger.With(zap.String("signature", signature))

	first, err := w.deduper.FirstSeen(ctx, signature)
	if err != nil {
		logger.Warn("dedup unavailable, processing anyway", zap.Error(err))
	} else if !first {
		observability.RecordDuplicate()
		logger.Debug("skipping already seen signature")
		return
	}

	parent := ctx
	if w.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.HandlerTimeout)
		defer cancel()
	}

	pc, err := w.extractor.Extract(ctx, signature)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		// A redelivery of this signature gets another chance.
		if err := w.deduper.Forget(parent, signature); err != nil {
			logger.Warn("releasing dedup mark failed", zap.Error(err))
		}
		return
	}

	if err := w.notifier.Notify(ctx, pc); err != nil {
		logger.Error("notification failed", zap.Error(err))
	} else {
		logger.Info("notification sent",
			zap.String("lb_pair", pc.LbPair),
			zap.String("token_x", pc.TokenX),
			zap.String("token_y", pc.TokenY),
		)
	}

	w.record(ctx, logger, pc)
}

func (w *Watcher) record(ctx context.Context, logger *zap.Logger, pc *domain.PoolCreation) {
	if w.store == nil {
		return
	}
	err := w.store.Insert(ctx, pc)
	if err == nil || errors.Is(err, storage.ErrDuplicateKey) {
		return
	}
	observability.RecordStoreError(w.storeName)
	logger.Warn("store pool creation failed", zap.String("store", w.storeName), zap.Error(err))
}
