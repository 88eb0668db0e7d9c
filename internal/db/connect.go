// Package db opens and migrates the two Kisaragi stores: the conversation
// log and the rank ledger. Each is an independently-lifecycled handle,
// opened at startup and closed at shutdown.
package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a GORM connection using the configured driver. For sqlite
// the target is a file path; for mysql it is a DSN.
func Connect(driver, target string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(target), cfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(target), cfg)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect %s %q: %w", driver, target, err)
	}
	return db, nil
}

// Close releases the underlying connection pool for a store handle.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: underlying handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return nil
}
