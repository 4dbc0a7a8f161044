package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/oncetrange/memcard/internal/cards"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsRemovesOrphanHistory(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&cards.CardRecord{}, &cards.HistoryRecord{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	card := cards.CardRecord{AccountID: "alice", CardID: "kept", Front: "f", Back: "b", NextReviewSeconds: 1}
	if err := database.Create(&card).Error; err != nil {
		testContext.Fatalf("failed to insert card: %v", err)
	}
	history := []cards.HistoryRecord{
		{AccountID: "alice", CardID: "kept", Sequence: 0, ReviewedSeconds: 1, Recalled: true},
		{AccountID: "alice", CardID: "deleted", Sequence: 0, ReviewedSeconds: 1},
		{AccountID: "bob", CardID: "kept", Sequence: 0, ReviewedSeconds: 1},
	}
	if err := database.Create(&history).Error; err != nil {
		testContext.Fatalf("failed to insert history: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var remaining []cards.HistoryRecord
	if err := database.Find(&remaining).Error; err != nil {
		testContext.Fatalf("failed to reload history: %v", err)
	}
	if len(remaining) != 1 || remaining[0].AccountID != "alice" || remaining[0].CardID != "kept" {
		testContext.Fatalf("expected only alice's kept history, got %+v", remaining)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRemoveOrphanCardHistory).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteMigratesServerSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "server.db")

	database, err := OpenSQLite(databasePath, nil, ServerSchema...)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, table := range []string{"accounts", "cards", "card_history", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}

	if err := Close(database); err != nil {
		testContext.Fatalf("failed to close database: %v", err)
	}
	reopened, err := OpenSQLite(databasePath, nil, ServerSchema...)
	if err != nil {
		testContext.Fatalf("failed to reopen database: %v", err)
	}
	defer Close(reopened)

	var count int64
	if err := reopened.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migrations: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected migrations to apply once, got %d records", count)
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite(" ", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
