package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oncetrange/memcard/internal/cards"
	"go.uber.org/zap"
)

var (
	errMissingCardStore = errors.New("importer: card store dependency required")
	// ErrUnsupportedFormat indicates a file extension with no reader.
	ErrUnsupportedFormat = errors.New("importer: unsupported file format")
)

// CardStore is the part of cards.Store the importer writes through.
type CardStore interface {
	Create(ctx context.Context, front, back string) (cards.Card, error)
	All() []cards.Card
}

// Config wires an Importer. Sheet defaults to DefaultSheetOptions when both
// columns are empty.
type Config struct {
	Store CardStore
	// SkipExisting drops entries whose front and back match a stored card.
	SkipExisting bool
	Sheet        SheetOptions
	Logger       *zap.Logger
}

// Importer creates cards from Markdown and spreadsheet sources.
type Importer struct {
	store        CardStore
	skipExisting bool
	sheet        SheetOptions
	logger       *zap.Logger
}

// Result counts what one import did. Rejected lists entries that failed
// validation, by source line.
type Result struct {
	Created  int
	Skipped  int
	Rejected []string
}

// New validates cfg and returns an Importer writing through cfg.Store.
func New(cfg Config) (*Importer, error) {
	if cfg.Store == nil {
		return nil, errMissingCardStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sheet := cfg.Sheet
	if sheet.FrontColumn == "" && sheet.BackColumn == "" {
		sheet = DefaultSheetOptions()
	}
	return &Importer{
		store:        cfg.Store,
		skipExisting: cfg.SkipExisting,
		sheet:        sheet,
		logger:       logger,
	}, nil
}

// ImportFile reads path by extension: .md, .markdown and .txt as Q:/A: text,
// .xlsx as a workbook.
func (i *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	var (
		entries []Entry
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		entries, err = ParseMarkdownFile(path)
	case ".xlsx", ".xlsm":
		entries, err = ReadSpreadsheet(path, i.sheet)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Result{}, err
	}

	result, err := i.ImportEntries(ctx, entries)
	i.logger.Info("cards imported",
		zap.String("path", path),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, err
}

// ImportEntries creates one card per valid entry. A persistence failure does
// not stop the import; the store keeps the cards and the last such error is
// returned.
func (i *Importer) ImportEntries(ctx context.Context, entries []Entry) (Result, error) {
	var result Result
	existing := make(map[[2]string]struct{})
	if i.skipExisting {
		for _, card := range i.store.All() {
			existing[[2]string{card.Front, card.Back}] = struct{}{}
		}
	}

	var persistErr error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := [2]string{strings.TrimSpace(entry.Front), strings.TrimSpace(entry.Back)}
		if _, ok := existing[key]; ok {
			result.Skipped++
			continue
		}

		_, err := i.store.Create(ctx, entry.Front, entry.Back)
		switch {
		case err == nil:
		case errors.Is(err, cards.ErrValidation):
			result.Rejected = append(result.Rejected, fmt.Sprintf("line %d: %v", entry.Line, err))
			continue
		case errors.Is(err, cards.ErrPersistence):
			persistErr = err
		default:
			return result, err
		}
		result.Created++
		if i.skipExisting {
			existing[key] = struct{}{}
		}
	}
	return result, persistErr
}
