package calibration

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/metalfolio/price-engine/internal/metals"
)

// RatioRow is the gorm model for one (metal, date) ratio.
type RatioRow struct {
	ID        uint      `gorm:"primaryKey"`
	Date      time.Time `gorm:"uniqueIndex:idx_ratio_metal_date,priority:2;not null"`
	Metal     string    `gorm:"uniqueIndex:idx_ratio_metal_date,priority:1;size:16;not null"`
	Ratio     float64   `gorm:"not null"`
	CreatedAt time.Time
}

func (RatioRow) TableName() string { return "calibration_ratios" }

// GormStore persists ratios with a unique (metal, date) index backing
// the one-row-per-day invariant.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) InsertDay(ctx context.Context, day time.Time, ratios Ratios) error {
	rows := make([]RatioRow, 0, len(ratios))
	for m, r := range ratios {
		rows = append(rows, RatioRow{Date: metals.Day(day), Metal: string(m), Ratio: r})
	}
	// DoNothing keeps the first writer's rows when two processes race.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (s *GormStore) ExistsForDay(ctx context.Context, day time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RatioRow{}).
		Where("date = ?", metals.Day(day)).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ForDate(ctx context.Context, day time.Time) (Ratios, error) {
	// Find the nearest date at or before the requested one, then load
	// that date's rows.
	var nearest RatioRow
	err := s.db.WithContext(ctx).
		Where("date <= ?", metals.Day(day)).
		Order("date DESC").
		First(&nearest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRatio
	}
	if err != nil {
		return nil, err
	}

	var rows []RatioRow
	if err := s.db.WithContext(ctx).
		Where("date = ?", nearest.Date).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(Ratios, len(rows))
	for _, r := range rows {
		out[metals.Metal(r.Metal)] = r.Ratio
	}
	return out, nil
}
