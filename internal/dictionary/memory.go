package dictionary

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) List(context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Keyword] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[keyword]; !ok {
		return ErrNotFound
	}
	delete(s.entries, keyword)
	return nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, keyword string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[keyword]
	if !ok {
		return ErrNotFound
	}
	entry.UsageCount++
	entry.UpdatedAt = at
	s.entries[keyword] = entry
	return nil
}

func (s *MemoryStore) Close() error { return nil }
