// Package pricelog is the append-only log of price snapshots, the
// ground truth the calibration engine and historical resolver read.
package pricelog

import (
	"context"
	"errors"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// ErrNoSnapshot is returned by lookups that find nothing in range.
var ErrNoSnapshot = errors.New("pricelog: no snapshot in range")

// Store is the persistence port for snapshots. Implementations must
// treat snapshots as immutable once appended.
type Store interface {
	Append(ctx context.Context, s metals.Snapshot) error
	// Closest returns the snapshot nearest to at, no further away
	// than window on either side.
	Closest(ctx context.Context, metal metals.Metal, at time.Time, window time.Duration) (metals.Snapshot, error)
	// ClosestOnDay returns the snapshot on the given UTC calendar day
	// nearest to noon, so single-snapshot days always match.
	ClosestOnDay(ctx context.Context, metal metals.Metal, day time.Time) (metals.Snapshot, error)
	// Range returns snapshots in [from, to) ordered by timestamp.
	Range(ctx context.Context, metal metals.Metal, from, to time.Time) ([]metals.Snapshot, error)
}
