package ttlstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Expired entries are dropped on access and by a full sweep every sweepEvery writes
const sweepEvery = 1024

type entry struct {
	value     string
	expiresAt time.Time
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	writes  int
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}

	s.writes++
	if s.writes >= sweepEvery {
		s.writes = 0
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
			}
		}
	}

	return nil
}

func (s *Memory) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.get(key)
	return ok, nil
}

func (s *Memory) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.get(key)
	delete(s.entries, key)
	return ok, nil
}

// get must be called with mu held
func (s *Memory) get(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return e, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return e, false
	}
	return e, true
}
