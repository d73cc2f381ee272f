package calibration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// MemoryStore backs tests and the no-database deployment mode.
type MemoryStore struct {
	mu   sync.RWMutex
	days map[string]Ratios // "2006-01-02" -> ratios
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[string]Ratios)}
}

func (s *MemoryStore) InsertDay(_ context.Context, day time.Time, ratios Ratios) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := metals.Day(day).Format("2006-01-02")
	if _, ok := s.days[key]; ok {
		return nil
	}
	cp := make(Ratios, len(ratios))
	for m, r := range ratios {
		cp[m] = r
	}
	s.days[key] = cp
	return nil
}

func (s *MemoryStore) ExistsForDay(_ context.Context, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.days[metals.Day(day).Format("2006-01-02")]
	return ok, nil
}

func (s *MemoryStore) ForDate(_ context.Context, day time.Time) (Ratios, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := metals.Day(day).Format("2006-01-02")
	keys := make([]string, 0, len(s.days))
	for k := range s.days {
		if k <= want {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoRatio
	}
	sort.Strings(keys)
	found := s.days[keys[len(keys)-1]]
	out := make(Ratios, len(found))
	for m, r := range found {
		out[m] = r
	}
	return out, nil
}
