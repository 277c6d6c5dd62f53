// Package dedup suppresses repeated deliveries of the same transaction signature.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// DefaultTTL is how long a signature is remembered.
const DefaultTTL = 24 * time.Hour

// ErrUnknownBackend is returned for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown dedup backend")

// Deduper records signatures and reports whether one is new.
type Deduper interface {
	// FirstSeen marks signature as seen and reports whether it was unseen before.
	FirstSeen(ctx context.Context, signature string) (bool, error)

	// Forget removes signature so its next delivery counts as first seen.
	Forget(ctx context.Context, signature string) error

	// Close releases backend resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	TTL       time.Duration
	RedisAddr string
	BoltPath  string
}

// New builds the deduper selected by cfg.
func New(cfg Config) (Deduper, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch cfg.Backend {
	case BackendNone, "":
		return Noop{}, nil
	case BackendMemory:
		return NewMemory(ttl), nil
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("redis dedup requires an address")
		}
		return NewRedis(cfg.RedisAddr, ttl), nil
	case BackendBolt:
		if cfg.BoltPath == "" {
			return nil, errors.New("bolt dedup requires a file path")
		}
		return OpenBolt(cfg.BoltPath, ttl)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Noop treats every signature as new.
type Noop struct{}

var _ Deduper = Noop{}

// FirstSeen always returns true.
func (Noop) FirstSeen(context.Context, string) (bool, error) { return true, nil }

// Forget is a no-op.
func (Noop) Forget(context.Context, string) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
