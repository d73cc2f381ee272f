package sources

import (
	"sync"
	"time"
)

// HealthState is the coarse availability of one upstream.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthFailed   HealthState = "failed"
)

// Transition thresholds use hysteresis so a single flake does not
// bounce the state.
const (
	errorsToDegrade  = 2
	errorsToFail     = 5
	successToRecover = 3
)

// HealthTracker accumulates per-upstream success/error streaks.
type HealthTracker struct {
	mu                 sync.Mutex
	source             string
	state              HealthState
	consecutiveErrors  int
	consecutiveSuccess int
	totalRequests      int64
	totalErrors        int64
	lastError          string
	lastCheck          time.Time
}

func NewHealthTracker(source string) *HealthTracker {
	return &HealthTracker{source: source, state: HealthHealthy}
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveSuccess++
	h.consecutiveErrors = 0
	h.totalRequests++
	h.lastCheck = time.Now()
	if h.state != HealthHealthy && h.consecutiveSuccess >= successToRecover {
		h.state = HealthHealthy
	}
}

func (h *HealthTracker) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors++
	h.consecutiveSuccess = 0
	h.totalRequests++
	h.totalErrors++
	h.lastError = err.Error()
	h.lastCheck = time.Now()
	switch {
	case h.consecutiveErrors >= errorsToFail:
		h.state = HealthFailed
	case h.consecutiveErrors >= errorsToDegrade:
		h.state = HealthDegraded
	}
}

// HealthSnapshot is a copy of the tracker state for health reporting.
type HealthSnapshot struct {
	Source            string      `json:"source"`
	Status            HealthState `json:"status"`
	ConsecutiveErrors int         `json:"consecutive_errors"`
	TotalRequests     int64       `json:"total_requests"`
	TotalErrors       int64       `json:"total_errors"`
	LastError         string      `json:"last_error,omitempty"`
	LastCheck         time.Time   `json:"last_check"`
}

func (h *HealthTracker) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Source:            h.source,
		Status:            h.state,
		ConsecutiveErrors: h.consecutiveErrors,
		TotalRequests:     h.totalRequests,
		TotalErrors:       h.totalErrors,
		LastError:         h.lastError,
		LastCheck:         h.lastCheck,
	}
}
