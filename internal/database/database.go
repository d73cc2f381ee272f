// Package database opens the MySQL connection backing the price log
// and the calibration ratio table.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/metalfolio/price-engine/internal/calibration"
	"github.com/metalfolio/price-engine/internal/config"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/pricelog"
)

// Open connects, configures the pool, and runs migrations for the two
// engine-owned tables.
func Open(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeMins) * time.Minute)

	if err := db.AutoMigrate(&pricelog.SnapshotRow{}, &calibration.RatioRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	observ.Log("database_connected", map[string]any{
		"max_open": cfg.MaxOpenConns,
		"max_idle": cfg.MaxIdleConns,
	})
	return db, nil
}
