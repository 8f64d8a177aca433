package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subseaops/divelog/internal/divers"
)

const migrationSeedDefaultRanks = "2026-08-12_seed_default_ranks"

// defaultRanks is the starting master list; previously a hardcoded client-side
// fallback, now seed data so a fresh install never presents an empty rank
// dropdown.
var defaultRanks = []string{"Supervisor", "Diver 1", "Diver 2", "Diver 3", "Tender", "LSS"}

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedDefaultRanks, apply: seedDefaultRanks},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func seedDefaultRanks(db *gorm.DB) error {
	for _, name := range defaultRanks {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		rank := divers.Rank{ID: id.String(), Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rank).Error; err != nil {
			return err
		}
	}
	return nil
}
