package cache

import (
	"sync"
	"time"
)

// Store is a mutex-guarded in-memory TTL cache. Used for the engine's
// short-TTL response cache and, with a 24h TTL, the stale fallback cache.
// Entries live only for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	hits   int64
	misses int64
}

type entry struct {
	value   any
	stored  time.Time
	expires time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value and its age when present and unexpired.
func (s *Store) Get(key string) (any, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, 0, false
	}
	now := s.now()
	if now.After(e.expires) {
		delete(s.entries, key)
		s.misses++
		return nil, 0, false
	}
	s.hits++
	return e.value, now.Sub(e.stored), true
}

// Set stores a value with the given TTL, replacing any previous entry.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.entries[key] = entry{value: value, stored: now, expires: now.Add(ttl)}
}

// PurgeExpired drops expired entries and returns how many were removed.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats reports hit/miss counters.
func (s *Store) Stats() (hits, misses int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses
}

// StartJanitor purges expired entries at the given interval until stop is
// closed.
func (s *Store) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.PurgeExpired()
			}
		}
	}()
}
