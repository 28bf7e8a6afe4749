// Package ephemeral implements the in-process TTL key/value store backing
// signal deduplication, cooldown windows, and notification throttling (spec
// §3's "Ephemeral store", §9's dependency-drop note on why this is in-process
// rather than a network service). It is built the way the teacher builds its
// own TTL-keyed caches (internal/blockchain/keycache.go, blockhash.go): a
// mutex-guarded map plus a background sweep goroutine, no external service.
package ephemeral

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type entry struct {
	value    string
	deadline time.Time
}

// Store is a concurrency-safe map with per-key expiry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Store and starts its background sweep goroutine, sweeping
// every interval.
func New(sweepInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.After(e.deadline) {
			delete(s.entries, k)
		}
	}
}

// Set stores value under key with the given TTL.
func (s *Store) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, deadline: time.Now().Add(ttl)}
}

// Get returns the value for key and whether it is present and unexpired.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(e.deadline) {
		return "", false
	}
	return e.value, true
}

// Exists is a convenience wrapper for callers that only need presence, e.g.
// the cooldown gate.
func (s *Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key, regardless of whether it has expired.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// DeleteMatching removes every key for which match returns true, used by the
// admin wildcard cooldown-reset endpoint.
func (s *Store) DeleteMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if match(k) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Keys returns every unexpired key for which match returns true, with its
// remaining TTL, used by the admin cooldown-listing endpoint.
func (s *Store) Keys(match func(key string) bool) map[string]time.Duration {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Duration)
	for k, e := range s.entries {
		if now.After(e.deadline) {
			continue
		}
		if match(k) {
			out[k] = e.deadline.Sub(now)
		}
	}
	return out
}

// TTL returns the remaining time-to-live for key, or 0 if absent/expired.
func (s *Store) TTL(key string) time.Duration {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	remaining := time.Until(e.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop halts the background sweep goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		log.Debug().Msg("ephemeral store sweep stopped")
	})
}
