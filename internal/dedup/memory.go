package dedup

import (
	"context"
	"sync"
	"time"
)

// Memory remembers signatures in process memory.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

// NewMemory creates an in-memory deduper.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

var _ Deduper = (*Memory)(nil)

// FirstSeen implements Deduper.
func (m *Memory) FirstSeen(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	if expires, ok := m.seen[signature]; ok && now.Before(expires) {
		return false, nil
	}
	m.seen[signature] = now.Add(m.ttl)
	return true, nil
}

// Forget implements Deduper.
func (m *Memory) Forget(_ context.Context, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, signature)
	return nil
}

// sweep drops expired entries at most once per TTL. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.ttl {
		return
	}
	for sig, expires := range m.seen {
		if !now.Before(expires) {
			delete(m.seen, sig)
		}
	}
	m.lastSweep = now
}

// Len returns the number of remembered signatures.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Close implements Deduper.
func (m *Memory) Close() error { return nil }
