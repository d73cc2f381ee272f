package pricelog

import (
	"context"
	"testing"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

func mustAppend(t *testing.T, s Store, metal metals.Metal, ts time.Time, price float64) {
	t.Helper()
	err := s.Append(context.Background(), metals.Snapshot{
		Timestamp: ts, Metal: metal, Price: price, Source: metals.SourceLive,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestMemoryStoreClosest(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 11, 14, 15, 0, 0, 0, time.UTC)
	mustAppend(t, s, metals.Gold, base.Add(-4*time.Minute), 2640.00)
	mustAppend(t, s, metals.Gold, base.Add(2*time.Minute), 2642.00)
	mustAppend(t, s, metals.Silver, base, 31.10)

	got, err := s.Closest(context.Background(), metals.Gold, base, 5*time.Minute)
	if err != nil {
		t.Fatalf("Closest: %v", err)
	}
	if got.Price != 2642.00 {
		t.Errorf("expected nearer snapshot 2642.00, got %v", got.Price)
	}

	// Outside the window: nothing.
	_, err = s.Closest(context.Background(), metals.Gold, base.Add(time.Hour), 5*time.Minute)
	if err != ErrNoSnapshot {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	// Other metal does not bleed through.
	_, err = s.Closest(context.Background(), metals.Palladium, base, 5*time.Minute)
	if err != ErrNoSnapshot {
		t.Errorf("expected ErrNoSnapshot for palladium, got %v", err)
	}
}

func TestMemoryStoreClosestOnDay(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2024, 11, 14, 0, 0, 0, 0, time.UTC)
	mustAppend(t, s, metals.Gold, day.Add(1*time.Hour), 2630.00)
	mustAppend(t, s, metals.Gold, day.Add(23*time.Hour), 2655.00)

	got, err := s.ClosestOnDay(context.Background(), metals.Gold, day)
	if err != nil {
		t.Fatalf("ClosestOnDay: %v", err)
	}
	if got.Price != 2630.00 {
		t.Errorf("expected morning snapshot nearer to noon, got %v", got.Price)
	}

	_, err = s.ClosestOnDay(context.Background(), metals.Gold, day.AddDate(0, 0, 5))
	if err != ErrNoSnapshot {
		t.Errorf("expected ErrNoSnapshot on empty day, got %v", err)
	}
}

func TestMemoryStoreRange(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		mustAppend(t, s, metals.Silver, day.AddDate(0, 0, i), 30.0+float64(i))
	}

	got, err := s.Range(context.Background(), metals.Silver, day.AddDate(0, 0, 1), day.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Error("range not ordered by timestamp")
		}
	}
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	s := &failingStore{}
	r := NewRecorder(s, 8)
	r.Start()
	r.Enqueue(metals.Snapshot{Metal: metals.Gold, Price: 2650, Source: metals.SourceLive})
	r.Close()
	// No panic, no blocking: the append error is logged and dropped.
	if s.appends != 1 {
		t.Errorf("expected 1 attempted append, got %d", s.appends)
	}
}

func TestRecorderDropsOnOverflow(t *testing.T) {
	block := make(chan struct{})
	s := &blockingStore{release: block}
	r := NewRecorder(s, 1)
	r.Start()

	// First fills the worker, second fills the queue, third drops.
	for i := 0; i < 3; i++ {
		r.Enqueue(metals.Snapshot{Metal: metals.Gold, Price: 2650})
	}
	if r.Dropped() == 0 {
		t.Error("expected at least one dropped snapshot")
	}
	close(block)
	r.Close()
}

type failingStore struct {
	MemoryStore
	appends int
}

func (f *failingStore) Append(context.Context, metals.Snapshot) error {
	f.appends++
	return context.DeadlineExceeded
}

type blockingStore struct {
	MemoryStore
	release chan struct{}
}

func (b *blockingStore) Append(context.Context, metals.Snapshot) error {
	<-b.release
	return nil
}
