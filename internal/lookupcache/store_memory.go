package lookupcache

import (
	"context"
	"sync"
)

// InMemoryStore keeps entries in a map behind a single lock. Lookups are
// dominated by network I/O, so one lock for the whole map is enough.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]Entry)}
}

func (s *InMemoryStore) Get(_ context.Context, domain string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[domain]
	return e, ok, nil
}

func (s *InMemoryStore) Put(_ context.Context, domain string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[domain] = entry
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
