package database

import (
	"fmt"
	"slices"
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema lists the models owned by each store.
var (
	CardSchema   = []any{&cards.CardRecord{}, &cards.HistoryRecord{}}
	ServerSchema = append([]any{&users.Account{}}, CardSchema...)
)

// OpenSQLite establishes a SQLite connection and performs schema migrations
// for models. The server passes ServerSchema; the terminal client passes CardSchema.
func OpenSQLite(path string, logger *zap.Logger, models ...any) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if len(models) == 0 {
		models = CardSchema
	}
	if err := db.AutoMigrate(append(slices.Clone(models), &migrationRecord{})...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Debug("database initialized", zap.String("path", path))
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
