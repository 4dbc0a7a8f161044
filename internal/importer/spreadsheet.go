package importer

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetOptions selects where card text lives in a workbook.
type SheetOptions struct {
	// Sheet defaults to the first sheet of the workbook.
	Sheet       string
	FrontColumn string
	BackColumn  string
	SkipHeader  bool
}

// DefaultSheetOptions reads fronts from column A and backs from column B,
// skipping one header row.
func DefaultSheetOptions() SheetOptions {
	return SheetOptions{
		FrontColumn: "A",
		BackColumn:  "B",
		SkipHeader:  true,
	}
}

// ReadSpreadsheet returns one entry per non-empty row of the selected sheet.
func ReadSpreadsheet(path string, options SheetOptions) ([]Entry, error) {
	frontIndex, err := columnIndex(options.FrontColumn)
	if err != nil {
		return nil, err
	}
	backIndex, err := columnIndex(options.BackColumn)
	if err != nil {
		return nil, err
	}

	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open workbook: %w", err)
	}
	defer workbook.Close()

	sheet := options.Sheet
	if sheet == "" {
		sheets := workbook.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("importer: workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("importer: read sheet %q: %w", sheet, err)
	}

	var entries []Entry
	for i, row := range rows {
		if i == 0 && options.SkipHeader {
			continue
		}
		front := cellAt(row, frontIndex)
		back := cellAt(row, backIndex)
		if front == "" && back == "" {
			continue
		}
		entries = append(entries, Entry{Front: front, Back: back, Line: i + 1})
	}
	return entries, nil
}

func columnIndex(column string) (int, error) {
	number, err := excelize.ColumnNameToNumber(strings.TrimSpace(column))
	if err != nil {
		return 0, fmt.Errorf("importer: invalid column %q: %w", column, err)
	}
	return number - 1, nil
}

func cellAt(row []string, index int) string {
	if index < len(row) {
		return strings.TrimSpace(row[index])
	}
	return ""
}
