package shield

import (
	"context"
	"sync"
)

// Counters splits events by conclusion.
type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore keeps counters in memory. It never expires anything.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byReason map[ReasonKind]int64
}

// NewMemoryStatsStore builds an empty store.
func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byRoute:  make(map[string]Counters),
		byReason: make(map[ReasonKind]int64),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byRoute[route]
	if ev.Conclusion == ConclusionDeny {
		s.total.Denied++
		c.Denied++
		s.byReason[ev.Reason]++
	} else {
		s.total.Allowed++
		c.Allowed++
	}
	s.byRoute[route] = c
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByReason() map[ReasonKind]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ReasonKind]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}
