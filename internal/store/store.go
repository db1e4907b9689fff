// Package store persists per-user usage totals in a local SQLite database.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Usage is one user's accumulated totals across all of their sessions.
type Usage struct {
	UserID       string  `gorm:"primaryKey"`
	TotalTasks   int64   `gorm:"not null;default:0"`
	TotalCostUSD float64 `gorm:"not null;default:0"`
	LastSession  string
	UpdatedAt    time.Time
}

// Store is the usage ledger. All writes are best-effort: a broken database
// degrades to warnings, never to failed tasks.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open creates or opens the SQLite ledger at path and migrates the schema.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Usage{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db, logger: log}, nil
}

// RecordTask adds one finished task to the user's totals.
func (s *Store) RecordTask(userID, sessionUUID string, costUSD float64) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var u Usage
		if err := tx.Where(Usage{UserID: userID}).FirstOrCreate(&u).Error; err != nil {
			return err
		}
		u.TotalTasks++
		u.TotalCostUSD += costUSD
		u.LastSession = sessionUUID
		return tx.Save(&u).Error
	})
	if err != nil {
		s.logger.Warn("usage ledger write failed", "user", userID, "error", err)
	}
}

// UserUsage returns the user's totals. A user with no history gets zeros.
func (s *Store) UserUsage(userID string) (Usage, error) {
	var u Usage
	err := s.db.Where(Usage{UserID: userID}).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return Usage{UserID: userID}, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("store: read usage for %s: %w", userID, err)
	}
	return u, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
