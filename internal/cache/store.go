// Package cache persists answered oracle queries so interrupted runs resume
// without re-spending network quota. Every component that talks to the oracle
// goes through a Store: lookup first, network only on a miss, store before
// returning.
package cache

import (
	"sync"

	"github.com/quantyard/trendrank/internal/oracle"
)

// Store is the query cache contract. Puts are idempotent: re-storing a
// response under an existing key is a no-op.
type Store interface {
	Get(key Key) (oracle.Response, bool)
	Put(key Key, resp oracle.Response) error
	Len() int
	Close() error
}

// MemStore is the map-backed Store used in tests and as the in-process
// front of the durable stores.
type MemStore struct {
	mu      sync.RWMutex
	entries map[Key]oracle.Response
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[Key]oracle.Response)}
}

func (s *MemStore) Get(key Key) (oracle.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.entries[key]
	return resp, ok
}

func (s *MemStore) Put(key Key, resp oracle.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return nil
	}
	s.entries[key] = resp
	return nil
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemStore) Close() error { return nil }
