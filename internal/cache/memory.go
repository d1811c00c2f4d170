package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is the default in-process cache backend: a bounded LRU with
// per-entry TTL. Entries disappear on eviction, expiry, or process restart;
// the cache is opportunistic by design.
type MemoryStore struct {
	lru *expirable.LRU[string, *Entry]
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries entries,
// each for at most ttl.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru: expirable.NewLRU[string, *Entry](maxEntries, nil, ttl),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, bool) {
	return m.lru.Get(key)
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	m.lru.Add(key, entry)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}
