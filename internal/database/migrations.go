package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationRepairResultUniqueIndexes    = "2026-10-01_repair_result_unique_indexes"
	migrationBackfillSubmissionAggregates = "2026-10-02_backfill_submission_aggregates"
)

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

func migrationDefinitions() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationRepairResultUniqueIndexes, apply: repairResultUniqueIndexes},
		{name: migrationBackfillSubmissionAggregates, apply: backfillSubmissionAggregates},
	}
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrationDefinitions() {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// repairResultUniqueIndexes drops unique indexes on results that do not match one of the
// required competition-scoped keys and recreates any required index that is missing.
// Older schemas carried keys without position, which rejected a user's second result.
func repairResultUniqueIndexes(db *gorm.DB) error {
	indexes, err := listIndexes(db, resultTable)
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if !index.Unique || index.Origin == "pk" {
			continue
		}
		columns, err := indexColumns(db, index.Name)
		if err != nil {
			return err
		}
		if expected, ok := requiredResultIndexes[index.Name]; ok && equalColumns(expected, columns) {
			continue
		}
		if err := db.Migrator().DropIndex(&contest.Result{}, index.Name); err != nil {
			return err
		}
	}

	for _, name := range requiredResultIndexNames() {
		if db.Migrator().HasIndex(&contest.Result{}, name) {
			continue
		}
		if err := db.Migrator().CreateIndex(&contest.Result{}, name); err != nil {
			return err
		}
	}
	return nil
}

// backfillSubmissionAggregates recomputes average_rating and rating_count from ratings.
func backfillSubmissionAggregates(db *gorm.DB) error {
	return db.Exec(`UPDATE submissions SET
		rating_count = (SELECT COUNT(*) FROM ratings WHERE ratings.photo_id = submissions.id),
		average_rating = COALESCE((SELECT ROUND(AVG(score), 1) FROM ratings WHERE ratings.photo_id = submissions.id), 0)`).Error
}
