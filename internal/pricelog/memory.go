package pricelog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// MemoryStore keeps snapshots in memory. It backs tests and the
// no-database deployment mode; resolution semantics match GormStore.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[metals.Metal][]metals.Snapshot // sorted by timestamp
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[metals.Metal][]metals.Snapshot)}
}

func (s *MemoryStore) Append(_ context.Context, snap metals.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Timestamp = snap.Timestamp.UTC()
	list := append(s.snaps[snap.Metal], snap)
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	s.snaps[snap.Metal] = list
	return nil
}

func (s *MemoryStore) Closest(_ context.Context, metal metals.Metal, at time.Time, window time.Duration) (metals.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at = at.UTC()
	var best metals.Snapshot
	bestDiff := window + 1
	for _, snap := range s.snaps[metal] {
		diff := snap.Timestamp.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window && diff < bestDiff {
			best = snap
			bestDiff = diff
		}
	}
	if bestDiff > window {
		return metals.Snapshot{}, ErrNoSnapshot
	}
	return best, nil
}

func (s *MemoryStore) ClosestOnDay(ctx context.Context, metal metals.Metal, day time.Time) (metals.Snapshot, error) {
	noon := metals.Day(day).Add(12 * time.Hour)
	return s.Closest(ctx, metal, noon, 12*time.Hour)
}

func (s *MemoryStore) Range(_ context.Context, metal metals.Metal, from, to time.Time) ([]metals.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []metals.Snapshot
	for _, snap := range s.snaps[metal] {
		if !snap.Timestamp.Before(from.UTC()) && snap.Timestamp.Before(to.UTC()) {
			out = append(out, snap)
		}
	}
	return out, nil
}
