package presence

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int64
	expires time.Time
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (s *MemoryStore) Join(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		e = &entry{}
		s.entries[key] = e
	}
	e.count++
	e.expires = s.now().Add(s.ttl)
	return e.count, nil
}

func (s *MemoryStore) Leave(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	e.count--
	if e.count <= 0 {
		delete(s.entries, key)
		return 0, nil
	}
	e.expires = s.now().Add(s.ttl)
	return e.count, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		return e.count, nil
	}
	return 0, nil
}

// Exists reports whether the key is currently stored.
func (s *MemoryStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil
}

// live returns the entry for key, dropping it first if it has expired.
// Callers hold s.mu.
func (s *MemoryStore) live(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil
	}
	return e
}
