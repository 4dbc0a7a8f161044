package cards

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opRepositoryNew  = "cards.repository.new"
	opRepositoryLoad = "cards.repository.load_all"
	opRepositorySave = "cards.repository.save_all"
	insertBatchSize  = 200
)

var (
	errMissingDatabase  = errors.New("database handle is required")
	errMissingAccountID = errors.New("account identifier is required")
)

// CardRecord is the persisted row of a card. Position keeps the collection order.
type CardRecord struct {
	AccountID           string `gorm:"column:account_id;primaryKey;size:190;not null;index:idx_cards_account_position,priority:1"`
	CardID              string `gorm:"column:card_id;primaryKey;size:190;not null"`
	Position            int    `gorm:"column:position;not null;index:idx_cards_account_position,priority:2"`
	Front               string `gorm:"column:front;type:text;not null"`
	Back                string `gorm:"column:back;type:text;not null"`
	Difficulty          int    `gorm:"column:difficulty;not null;default:0"`
	LastReviewedSeconds *int64 `gorm:"column:last_reviewed_s"`
	LastReviewedNanos   *int64 `gorm:"column:last_reviewed_ns"`
	NextReviewSeconds   int64  `gorm:"column:next_review_s;not null"`
	NextReviewNanos     int64  `gorm:"column:next_review_ns;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (CardRecord) TableName() string {
	return "cards"
}

// HistoryRecord is one persisted history entry of a card.
type HistoryRecord struct {
	AccountID       string `gorm:"column:account_id;primaryKey;size:190;not null"`
	CardID          string `gorm:"column:card_id;primaryKey;size:190;not null"`
	Sequence        int    `gorm:"column:sequence;primaryKey;not null"`
	ReviewedSeconds int64  `gorm:"column:reviewed_s;not null"`
	ReviewedNanos   int64  `gorm:"column:reviewed_ns;not null;default:0"`
	Recalled        bool   `gorm:"column:recalled;not null"`
}

// TableName provides the explicit table binding for GORM.
func (HistoryRecord) TableName() string {
	return "card_history"
}

// RepositoryConfig describes the dependencies of a Repository.
type RepositoryConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Repository persists card collections for many accounts.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository constructs a gorm-backed Repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opRepositoryNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Repository{db: cfg.Database, logger: logger}, nil
}

// ForAccount returns the Persistence collaborator scoped to one account.
func (r *Repository) ForAccount(accountID string) Persistence {
	return accountCollection{repository: r, accountID: strings.TrimSpace(accountID)}
}

type accountCollection struct {
	repository *Repository
	accountID  string
}

func (a accountCollection) LoadAll(ctx context.Context) ([]Card, error) {
	return a.repository.LoadAll(ctx, a.accountID)
}

func (a accountCollection) SaveAll(ctx context.Context, collection []Card) error {
	return a.repository.SaveAll(ctx, a.accountID, collection)
}

// LoadAll returns the stored collection of an account in its saved order.
func (r *Repository) LoadAll(ctx context.Context, accountID string) ([]Card, error) {
	if r == nil || r.db == nil {
		return nil, newServiceError(opRepositoryLoad, "missing_database", errMissingDatabase)
	}
	if accountID == "" {
		return nil, newServiceError(opRepositoryLoad, "missing_account_id", errMissingAccountID)
	}

	var records []CardRecord
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("position ASC").
		Find(&records).Error; err != nil {
		r.logError(opRepositoryLoad, "card_query_failed", err, zap.String("account_id", accountID))
		return nil, newServiceError(opRepositoryLoad, "card_query_failed", err)
	}

	var historyRecords []HistoryRecord
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("card_id ASC").
		Order("sequence ASC").
		Find(&historyRecords).Error; err != nil {
		r.logError(opRepositoryLoad, "history_query_failed", err, zap.String("account_id", accountID))
		return nil, newServiceError(opRepositoryLoad, "history_query_failed", err)
	}

	histories := make(map[string][]HistoryEntry, len(records))
	for _, record := range historyRecords {
		histories[record.CardID] = append(histories[record.CardID], HistoryEntry{
			Date:     joinTime(record.ReviewedSeconds, record.ReviewedNanos),
			Recalled: record.Recalled,
		})
	}

	collection := make([]Card, 0, len(records))
	for _, record := range records {
		card := Card{
			ID:             CardID(record.CardID),
			Front:          record.Front,
			Back:           record.Back,
			Difficulty:     record.Difficulty,
			NextReviewDate: joinTime(record.NextReviewSeconds, record.NextReviewNanos),
			History:        histories[record.CardID],
		}
		if card.History == nil {
			card.History = []HistoryEntry{}
		}
		if record.LastReviewedSeconds != nil {
			var nanos int64
			if record.LastReviewedNanos != nil {
				nanos = *record.LastReviewedNanos
			}
			lastReviewed := joinTime(*record.LastReviewedSeconds, nanos)
			card.LastReviewed = &lastReviewed
		}
		collection = append(collection, card)
	}
	return collection, nil
}

// SaveAll replaces the stored collection of an account in one transaction.
func (r *Repository) SaveAll(ctx context.Context, accountID string, collection []Card) error {
	if r == nil || r.db == nil {
		return newServiceError(opRepositorySave, "missing_database", errMissingDatabase)
	}
	if accountID == "" {
		return newServiceError(opRepositorySave, "missing_account_id", errMissingAccountID)
	}

	cardRecords := make([]CardRecord, 0, len(collection))
	historyRecords := make([]HistoryRecord, 0)
	for position, card := range collection {
		nextSeconds, nextNanos := splitTime(card.NextReviewDate)
		record := CardRecord{
			AccountID:         accountID,
			CardID:            card.ID.String(),
			Position:          position,
			Front:             card.Front,
			Back:              card.Back,
			Difficulty:        card.Difficulty,
			NextReviewSeconds: nextSeconds,
			NextReviewNanos:   nextNanos,
		}
		if card.LastReviewed != nil {
			seconds, nanos := splitTime(*card.LastReviewed)
			record.LastReviewedSeconds = pointerTo(seconds)
			record.LastReviewedNanos = pointerTo(nanos)
		}
		cardRecords = append(cardRecords, record)
		for sequence, entry := range card.History {
			seconds, nanos := splitTime(entry.Date)
			historyRecords = append(historyRecords, HistoryRecord{
				AccountID:       accountID,
				CardID:          card.ID.String(),
				Sequence:        sequence,
				ReviewedSeconds: seconds,
				ReviewedNanos:   nanos,
				Recalled:        entry.Recalled,
			})
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&HistoryRecord{}).Error; err != nil {
			r.logError(opRepositorySave, "history_delete_failed", err, zap.String("account_id", accountID))
			return newServiceError(opRepositorySave, "history_delete_failed", err)
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&CardRecord{}).Error; err != nil {
			r.logError(opRepositorySave, "card_delete_failed", err, zap.String("account_id", accountID))
			return newServiceError(opRepositorySave, "card_delete_failed", err)
		}
		if len(cardRecords) > 0 {
			if err := tx.CreateInBatches(cardRecords, insertBatchSize).Error; err != nil {
				r.logError(opRepositorySave, "card_insert_failed", err, zap.String("account_id", accountID))
				return newServiceError(opRepositorySave, "card_insert_failed", err)
			}
		}
		if len(historyRecords) > 0 {
			if err := tx.CreateInBatches(historyRecords, insertBatchSize).Error; err != nil {
				r.logError(opRepositorySave, "history_insert_failed", err, zap.String("account_id", accountID))
				return newServiceError(opRepositorySave, "history_insert_failed", err)
			}
		}
		return nil
	})
}

func (r *Repository) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.logger.Error("card repository error", attrs...)
}

// splitTime keeps full precision for instants beyond the UnixNano range.
func splitTime(value time.Time) (int64, int64) {
	return value.Unix(), int64(value.Nanosecond())
}

func joinTime(seconds, nanos int64) time.Time {
	return time.Unix(seconds, nanos).UTC()
}

func pointerTo(value int64) *int64 {
	v := value
	return &v
}
