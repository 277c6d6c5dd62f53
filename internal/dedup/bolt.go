package dedup

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var signaturesBucket = []byte("signatures")

// Bolt remembers signatures in a local bbolt file so restarts keep state.
// Expired entries are pruned at open and then at most once per TTL on write.
type Bolt struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	lastPrune time.Time
}

// BoltOption configures OpenBolt.
type BoltOption func(*Bolt)

// WithBoltClock replaces time.Now for expiry decisions.
func WithBoltClock(now func() time.Time) BoltOption {
	return func(b *Bolt) { b.now = now }
}

// OpenBolt opens or creates the bbolt file at path, creating missing parent
// directories.
func OpenBolt(path string, ttl time.Duration, opts ...BoltOption) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory %s: %w", dir, err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(signaturesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	b := &Bolt{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if _, err := b.Prune(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prune expired signatures: %w", err)
	}
	return b, nil
}

var _ Deduper = (*Bolt)(nil)

// FirstSeen implements Deduper.
// Each value holds the expiry as big-endian unix milliseconds.
func (b *Bolt) FirstSeen(ctx context.Context, signature string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := b.now()
	if b.pruneDue(now) {
		if _, err := b.Prune(); err != nil {
			return false, fmt.Errorf("prune expired signatures: %w", err)
		}
	}

	first := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(signaturesBucket)
		key := []byte(signature)

		if v := bucket.Get(key); len(v) == 8 {
			expires := time.UnixMilli(int64(binary.BigEndian.Uint64(v)))
			if now.Before(expires) {
				return nil
			}
		}

		first = true
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(now.Add(b.ttl).UnixMilli()))
		return bucket.Put(key, v[:])
	})
	if err != nil {
		return false, fmt.Errorf("bolt update: %w", err)
	}
	return first, nil
}

// Forget implements Deduper.
func (b *Bolt) Forget(ctx context.Context, signature string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(signaturesBucket).Delete([]byte(signature))
	})
	if err != nil {
		return fmt.Errorf("bolt delete: %w", err)
	}
	return nil
}

func (b *Bolt) pruneDue(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastPrune) >= b.ttl
}

// Prune deletes expired signatures and returns how many were removed.
func (b *Bolt) Prune() (int, error) {
	now := b.now()
	cutoff := now.UnixMilli()
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(signaturesBucket)
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if len(v) != 8 || int64(binary.BigEndian.Uint64(v)) <= cutoff {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	b.lastPrune = now
	b.mu.Unlock()
	return removed, nil
}

// Len returns the number of stored signatures, expired or not.
func (b *Bolt) Len() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(signaturesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close implements Deduper.
func (b *Bolt) Close() error {
	return b.db.Close()
}
