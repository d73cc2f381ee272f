package pricelog

import (
	"context"
	"sync"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
)

// Recorder decouples snapshot persistence from the request path. The
// live cache enqueues after every successful refresh; a slow or broken
// datastore must never delay or fail a price response, so writes run
// on a single background worker and overflow is dropped, not blocked on.
type Recorder struct {
	store Store
	ch    chan metals.Snapshot

	wg      sync.WaitGroup
	once    sync.Once
	dropped int64
	mu      sync.Mutex
}

// NewRecorder creates a recorder with the given queue depth.
func NewRecorder(store Store, depth int) *Recorder {
	if depth <= 0 {
		depth = 256
	}
	return &Recorder{store: store, ch: make(chan metals.Snapshot, depth)}
}

// Start launches the worker. The worker drains the queue until Close.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for snap := range r.ch {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := r.store.Append(ctx, snap)
			cancel()
			if err != nil {
				observ.IncCounter("pricelog_append_errors_total", nil)
				observ.Log("pricelog_append_failed", map[string]any{
					"metal": string(snap.Metal),
					"error": err.Error(),
				})
				continue
			}
			observ.IncCounter("pricelog_appends_total", map[string]string{"source": snap.Source})
		}
	}()
}

// Enqueue hands a snapshot to the worker without blocking. A full
// queue drops the snapshot and counts it.
func (r *Recorder) Enqueue(snap metals.Snapshot) {
	select {
	case r.ch <- snap:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		observ.IncCounter("pricelog_drops_total", nil)
	}
}

// Dropped reports how many snapshots were discarded on overflow.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting snapshots and waits for the queue to drain.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.ch)
	})
	r.wg.Wait()
}
