package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize is the entry limit used when none is configured
const DefaultMemorySize = 16

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in a process-local LRU
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryStore creates an in-memory store holding at most size entries
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}

	// Expiry is tracked per entry, the LRU itself never ages entries out
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, 0),
		now: time.Now,
	}, nil
}

// Get returns a copy of the stored value if present and not expired
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Put stores a copy of value for ttl
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.lru.Add(key, memoryEntry{value: stored, expiresAt: m.now().Add(ttl)})
	return nil
}

// Close drops all entries
func (m *MemoryStore) Close() error {
	m.lru.Purge()
	return nil
}
