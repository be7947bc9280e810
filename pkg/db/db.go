// SQLite-backed store setup for chat sessions and messages.
package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the SQLite database at path and runs migrations.
func Open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite tolerates a single writer; keep the pool at one connection to
	// avoid "database is locked" errors under concurrent turns.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// migrate runs all automigrations. Keep the model list in one place.
func migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&Session{},
		&Message{},
		&Attachment{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
