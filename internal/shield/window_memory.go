package shield

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryWindowStore keeps per-key hit logs in process memory. It suits a
// single instance; use the Redis store when running more than one.
type MemoryWindowStore struct {
	mu           sync.Mutex
	windows      map[string]*windowLog
	now          func() time.Time
	cleanupEvery time.Duration
}

type windowLog struct {
	window time.Duration
	hits   []time.Time
}

// MemoryWindowOption configures a MemoryWindowStore.
type MemoryWindowOption func(*MemoryWindowStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

// WithCleanupEvery sets the janitor interval. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

// NewMemoryWindowStore builds an empty store.
func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows:      make(map[string]*windowLog),
		now:          time.Now,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) Hit(_ context.Context, key string, limit int64, window time.Duration) (WindowResult, error) {
	if limit <= 0 || window <= 0 {
		return WindowResult{}, errors.New("invalid limit or window")
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.windows[key]
	if entry == nil {
		entry = &windowLog{window: window}
		s.windows[key] = entry
	}
	if entry.window != window {
		entry.window = window
		entry.hits = nil
	}

	cutoff := now.Add(-window)
	kept := entry.hits[:0]
	for _, t := range entry.hits {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	entry.hits = kept

	count := int64(len(entry.hits))
	allowed := count < limit
	if allowed {
		entry.hits = append(entry.hits, now)
		count++
	}

	var resetIn time.Duration
	if len(entry.hits) > 0 {
		resetIn = entry.hits[0].Add(window).Sub(now)
		if resetIn < 0 {
			resetIn = 0
		}
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return WindowResult{Allowed: allowed, Count: count, Remaining: remaining, ResetIn: resetIn}, nil
}

// Cleanup drops keys whose newest hit has left its window.
func (s *MemoryWindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.windows {
		if len(entry.hits) == 0 || entry.hits[len(entry.hits)-1].Add(entry.window).Before(now) {
			delete(s.windows, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// StartJanitor cleans idle keys periodically until ctx is done.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
