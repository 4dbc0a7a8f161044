package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oncetrange/memcard/internal/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type memoryPersistence struct {
	saved   []cards.Card
	saveErr error
}

func (m *memoryPersistence) LoadAll(context.Context) ([]cards.Card, error) {
	return m.saved, nil
}

func (m *memoryPersistence) SaveAll(_ context.Context, collection []cards.Card) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = collection
	return nil
}

func newTestImporter(t *testing.T, persistence *memoryPersistence, skipExisting bool) (*Importer, *cards.Store) {
	t.Helper()
	store, err := cards.NewStore(cards.StoreConfig{
		Persistence: persistence,
		IDProvider:  cards.NewUUIDProvider(),
	})
	require.NoError(t, err)
	importer, err := New(Config{Store: store, SkipExisting: skipExisting})
	require.NoError(t, err)
	return importer, store
}

func TestParseMarkdown(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []Entry
	}{
		{
			name:     "single pair",
			input:    "Q: What is the capital of France?\nA: Paris",
			expected: []Entry{{Front: "What is the capital of France?", Back: "Paris", Line: 1}},
		},
		{
			name:     "multiline answer",
			input:    "\nQ: Primary colors?\nA: Red\nBlue\nYellow\n",
			expected: []Entry{{Front: "Primary colors?", Back: "Red\nBlue\nYellow", Line: 2}},
		},
		{
			name:  "two cards separated by a new question",
			input: "Q: First\nA: One\n\nQ: Second\nA: Two\n",
			expected: []Entry{
				{Front: "First", Back: "One", Line: 1},
				{Front: "Second", Back: "Two", Line: 4},
			},
		},
		{
			name:  "separator ends a block",
			input: "Q: First\nA: One\n---\nnotes that belong to nothing\nQ: Second\nA: Two",
			expected: []Entry{
				{Front: "First", Back: "One", Line: 1},
				{Front: "Second", Back: "Two", Line: 5},
			},
		},
		{
			name:     "prefixes without space",
			input:    "Q:Question\nA:Answer",
			expected: []Entry{{Front: "Question", Back: "Answer", Line: 1}},
		},
		{
			name:     "question without answer",
			input:    "Q: Lonely",
			expected: []Entry{{Front: "Lonely", Line: 1}},
		},
		{
			name:  "no cards",
			input: "Just prose.\nA: stray answer",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			entries, err := ParseMarkdown(strings.NewReader(testCase.input))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, entries)
		})
	}
}

func TestImportEntriesCreatesCards(t *testing.T) {
	importer, store := newTestImporter(t, &memoryPersistence{}, false)

	result, err := importer.ImportEntries(context.Background(), []Entry{
		{Front: "one", Back: "1", Line: 1},
		{Front: "two", Back: "", Line: 3},
		{Front: " three ", Back: "3", Line: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], "line 3")

	all := store.All()
	require.Len(t, all, 2)
	fronts := []string{all[0].Front, all[1].Front}
	assert.ElementsMatch(t, []string{"one", "three"}, fronts)
}

func TestImportEntriesSkipsExistingCards(t *testing.T) {
	importer, store := newTestImporter(t, &memoryPersistence{}, true)
	_, err := store.Create(context.Background(), "one", "1")
	require.NoError(t, err)

	result, err := importer.ImportEntries(context.Background(), []Entry{
		{Front: "one", Back: "1"},
		{Front: "two", Back: "2"},
		{Front: "two ", Back: " 2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, store.Len())
}

func TestImportEntriesKeepsCardsWhenPersistenceFails(t *testing.T) {
	persistence := &memoryPersistence{saveErr: errors.New("disk full")}
	importer, store := newTestImporter(t, persistence, false)

	result, err := importer.ImportEntries(context.Background(), []Entry{
		{Front: "one", Back: "1"},
		{Front: "two", Back: "2"},
	})
	require.ErrorIs(t, err, cards.ErrPersistence)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Dirty())
}

func TestImportFileReadsMarkdown(t *testing.T) {
	importer, store := newTestImporter(t, &memoryPersistence{}, false)
	path := filepath.Join(t.TempDir(), "deck.md")
	require.NoError(t, os.WriteFile(path, []byte("Q: hola\nA: hello\n\nQ: adios\nA: goodbye\n"), 0o600))

	result, err := importer.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, store.Len())
}

func TestImportFileReadsSpreadsheet(t *testing.T) {
	importer, store := newTestImporter(t, &memoryPersistence{}, false)
	path := writeWorkbook(t, [][]string{
		{"Front", "Back"},
		{"perro", "dog"},
		{"", ""},
		{"gato", "cat"},
		{"pez", ""},
	})

	result, err := importer.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], "line 5")
	assert.Equal(t, 2, store.Len())
}

func TestImportFileRejectsUnknownExtension(t *testing.T) {
	importer, _ := newTestImporter(t, &memoryPersistence{}, false)
	_, err := importer.ImportFile(context.Background(), "deck.pdf")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadSpreadsheetColumnsAndSheet(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"id", "answer", "question"},
		{"1", "dog", "perro"},
	})

	entries, err := ReadSpreadsheet(path, SheetOptions{
		Sheet:       "Sheet1",
		FrontColumn: "C",
		BackColumn:  "B",
		SkipHeader:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Front: "perro", Back: "dog", Line: 2}}, entries)

	_, err = ReadSpreadsheet(path, SheetOptions{FrontColumn: "1", BackColumn: "B"})
	require.Error(t, err)

	_, err = ReadSpreadsheet(path, SheetOptions{Sheet: "Missing", FrontColumn: "A", BackColumn: "B"})
	require.Error(t, err)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	workbook := excelize.NewFile()
	defer workbook.Close()
	for rowIndex, row := range rows {
		for columnIndex, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(columnIndex+1, rowIndex+1)
			require.NoError(t, err)
			require.NoError(t, workbook.SetCellValue("Sheet1", cell, value))
		}
	}
	path := filepath.Join(t.TempDir(), "deck.xlsx")
	require.NoError(t, workbook.SaveAs(path))
	return path
}
