package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is an in-process cache backend. Suitable for tests and
// single-shot CLI invocations where no durable cache is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithNow sets the clock, for TTL tests.
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string, kind Kind) (Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[string(kind)+"\x00"+key]
	if !ok || m.now().After(e.expiresAt) {
		return Miss, nil
	}
	return HitOutcome(e.payload), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, kind Kind, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[string(kind)+"\x00"+key] = memoryEntry{
		payload:   payload,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	cutoff := m.now()
	for k, e := range m.entries {
		if cutoff.After(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
