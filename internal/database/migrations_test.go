package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/contest"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	return database
}

func TestApplyMigrationsRepairsLegacyResultIndexes(testContext *testing.T) {
	database := openTestDatabase(testContext)
	if err := database.AutoMigrate(append(contest.Models(), &migrationRecord{})...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := []string{
		"DROP INDEX idx_results_competition_position",
		"CREATE UNIQUE INDEX idx_results_competition_position ON results (competition_id)",
		"CREATE UNIQUE INDEX idx_results_user_prize ON results (user_id, prize)",
	}
	for _, statement := range legacy {
		if err := database.Exec(statement).Error; err != nil {
			testContext.Fatalf("failed to prepare legacy schema: %v", err)
		}
	}
	if err := VerifySchema(database); !errors.Is(err, ErrSchemaMismatch) {
		testContext.Fatalf("expected legacy schema to fail verification, got %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}
	if err := VerifySchema(database); err != nil {
		testContext.Fatalf("expected repaired schema to verify, got %v", err)
	}
	if database.Migrator().HasIndex(&contest.Result{}, "idx_results_user_prize") {
		testContext.Fatalf("expected legacy index to be dropped")
	}

	results := []contest.Result{
		{ID: "r1", CompetitionID: "c1", UserID: "alice", PhotoID: "p1", Position: 1, Prize: contest.PrizeGold},
		{ID: "r2", CompetitionID: "c2", UserID: "alice", PhotoID: "p2", Position: 1, Prize: contest.PrizeGold},
		{ID: "r3", CompetitionID: "c1", UserID: "bob", PhotoID: "p3", Position: 2, Prize: contest.PrizeSilver},
	}
	for _, result := range results {
		if err := database.Create(&result).Error; err != nil {
			testContext.Fatalf("expected result %s to be accepted, got %v", result.ID, err)
		}
	}
	duplicate := contest.Result{ID: "r4", CompetitionID: "c1", UserID: "carol", PhotoID: "p4", Position: 1, Prize: contest.PrizeGold}
	if err := database.Create(&duplicate).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		testContext.Fatalf("expected duplicate position to be rejected, got %v", err)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRepairResultUniqueIndexes).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsBackfillsSubmissionAggregates(testContext *testing.T) {
	database := openTestDatabase(testContext)
	if err := database.AutoMigrate(append(contest.Models(), &migrationRecord{})...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	rows := []any{
		&contest.Submission{ID: "p1", CompetitionID: "c1", UserID: "owner", AverageRating: 1.0, RatingCount: 9, Status: contest.SubmissionStatusApproved},
		&contest.Submission{ID: "p2", CompetitionID: "c1", UserID: "owner", AverageRating: 3.0, RatingCount: 2, Status: contest.SubmissionStatusApproved},
		&contest.Rating{ID: "r1", UserID: "a", PhotoID: "p1", Score: 5},
		&contest.Rating{ID: "r2", UserID: "b", PhotoID: "p1", Score: 4},
	}
	for _, row := range rows {
		if err := database.Create(row).Error; err != nil {
			testContext.Fatalf("failed to seed %T: %v", row, err)
		}
	}

	if err := applyMigrations(database, nil); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var first, second contest.Submission
	database.Where("id = ?", "p1").Take(&first)
	database.Where("id = ?", "p2").Take(&second)
	if first.RatingCount != 2 || first.AverageRating != 4.5 {
		testContext.Fatalf("expected p1 aggregates 2 / 4.5, got %d / %v", first.RatingCount, first.AverageRating)
	}
	if second.RatingCount != 0 || second.AverageRating != 0 {
		testContext.Fatalf("expected p2 aggregates reset, got %d / %v", second.RatingCount, second.AverageRating)
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	database := openTestDatabase(testContext)
	if err := Migrate(database, nil); err != nil {
		testContext.Fatalf("first migrate failed: %v", err)
	}
	if err := database.Create(&contest.Submission{ID: "p1", CompetitionID: "c1", UserID: "owner", AverageRating: 4.0, RatingCount: 3}).Error; err != nil {
		testContext.Fatalf("failed to seed submission: %v", err)
	}
	if err := Migrate(database, nil); err != nil {
		testContext.Fatalf("second migrate failed: %v", err)
	}

	var stored contest.Submission
	if err := database.Where("id = ?", "p1").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload submission: %v", err)
	}
	if stored.RatingCount != 3 {
		testContext.Fatalf("expected backfill not to run twice, got rating count %d", stored.RatingCount)
	}

	var applied int64
	database.Model(&migrationRecord{}).Count(&applied)
	if applied != int64(len(migrationDefinitions())) {
		testContext.Fatalf("expected %d migration records, got %d", len(migrationDefinitions()), applied)
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
	db, err := OpenSQLite(filepath.Join(testContext.TempDir(), "podium.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	if err := VerifySchema(db); err != nil {
		testContext.Fatalf("expected verified schema, got %v", err)
	}
}
