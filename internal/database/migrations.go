package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRemoveOrphanCardHistory = "2026-05-10_remove_orphan_card_history"

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
		{name: migrationRemoveOrphanCardHistory, apply: removeOrphanCardHistory},
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
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// removeOrphanCardHistory drops history rows whose card no longer exists.
func removeOrphanCardHistory(db *gorm.DB) error {
	if !db.Migrator().HasTable("card_history") || !db.Migrator().HasTable("cards") {
		return nil
	}
	return db.Exec(`DELETE FROM card_history WHERE NOT EXISTS (
		SELECT 1 FROM cards
		WHERE cards.account_id = card_history.account_id
		AND cards.card_id = card_history.card_id
	)`).Error
}
