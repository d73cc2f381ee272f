package pricelog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/metalfolio/price-engine/internal/metals"
)

// SnapshotRow is the gorm model backing the price log.
type SnapshotRow struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index:idx_snapshots_metal_ts,priority:2;not null"`
	Metal     string    `gorm:"index:idx_snapshots_metal_ts,priority:1;size:16;not null"`
	Price     float64   `gorm:"not null"`
	Source    string    `gorm:"size:32;not null"`
	CreatedAt time.Time
}

func (SnapshotRow) TableName() string { return "price_snapshots" }

// GormStore persists snapshots in the relational datastore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, snap metals.Snapshot) error {
	row := SnapshotRow{
		Timestamp: snap.Timestamp.UTC(),
		Metal:     string(snap.Metal),
		Price:     snap.Price,
		Source:    snap.Source,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Closest(ctx context.Context, metal metals.Metal, at time.Time, window time.Duration) (metals.Snapshot, error) {
	at = at.UTC()
	var before, after SnapshotRow

	errBefore := s.db.WithContext(ctx).
		Where("metal = ? AND timestamp <= ? AND timestamp >= ?", string(metal), at, at.Add(-window)).
		Order("timestamp DESC").
		First(&before).Error
	errAfter := s.db.WithContext(ctx).
		Where("metal = ? AND timestamp > ? AND timestamp <= ?", string(metal), at, at.Add(window)).
		Order("timestamp ASC").
		First(&after).Error

	switch {
	case errBefore == nil && errAfter == nil:
		if at.Sub(before.Timestamp) <= after.Timestamp.Sub(at) {
			return toSnapshot(before), nil
		}
		return toSnapshot(after), nil
	case errBefore == nil:
		return toSnapshot(before), nil
	case errAfter == nil:
		return toSnapshot(after), nil
	}
	if errors.Is(errBefore, gorm.ErrRecordNotFound) && errors.Is(errAfter, gorm.ErrRecordNotFound) {
		return metals.Snapshot{}, ErrNoSnapshot
	}
	if !errors.Is(errBefore, gorm.ErrRecordNotFound) {
		return metals.Snapshot{}, errBefore
	}
	return metals.Snapshot{}, errAfter
}

func (s *GormStore) ClosestOnDay(ctx context.Context, metal metals.Metal, day time.Time) (metals.Snapshot, error) {
	noon := metals.Day(day).Add(12 * time.Hour)
	snap, err := s.Closest(ctx, metal, noon, 12*time.Hour)
	if errors.Is(err, ErrNoSnapshot) {
		return metals.Snapshot{}, ErrNoSnapshot
	}
	return snap, err
}

func (s *GormStore) Range(ctx context.Context, metal metals.Metal, from, to time.Time) ([]metals.Snapshot, error) {
	var rows []SnapshotRow
	err := s.db.WithContext(ctx).
		Where("metal = ? AND timestamp >= ? AND timestamp < ?", string(metal), from.UTC(), to.UTC()).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]metals.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = toSnapshot(r)
	}
	return out, nil
}

func toSnapshot(r SnapshotRow) metals.Snapshot {
	return metals.Snapshot{
		Timestamp: r.Timestamp.UTC(),
		Metal:     metals.Metal(r.Metal),
		Price:     r.Price,
		Source:    r.Source,
	}
}
