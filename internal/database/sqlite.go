package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/subseaops/divelog/internal/auth"
	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/jobs"
	"github.com/subseaops/divelog/internal/profiles"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&jobs.Job{},
		&divers.Diver{},
		&divers.Rank{},
		&profiles.Profile{},
		&dives.Dive{},
		&dives.Event{},
		&auth.Account{},
		&migrationRecord{},
	)
}
