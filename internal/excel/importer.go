package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration. Columns are A-based
// letters into the sheet: word, translation, description, examples,
// difficulty.
type ImportConfig struct {
	FilePath          string
	WordColumn        string
	TranslationColumn string
	DescriptionColumn string
	ExamplesColumn    string
	DifficultyColumn  string
	SheetName         string
	StartRow          int // 1-based; default skips the header row
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:        "A",
		TranslationColumn: "B",
		DescriptionColumn: "C",
		ExamplesColumn:    "D",
		DifficultyColumn:  "E",
		SheetName:         "Sheet1",
		StartRow:          2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportWords imports catalog words from an Excel file, upserting by
// the word text so re-imports refresh existing entries
func ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %v", sheet, err)
	}

	wordRepo := database.NewWordRepository()
	result := &ImportResult{Errors: make([]string, 0)}

	columnIndex := func(col string) int {
		idx, err := excelize.ColumnNameToNumber(col)
		if err != nil {
			return -1
		}
		return idx - 1
	}
	cell := func(row []string, col string) string {
		idx := columnIndex(col)
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	start := config.StartRow
	if start < 1 {
		start = 1
	}

	for i := start - 1; i < len(rows); i++ {
		row := rows[i]
		result.TotalProcessed++

		word := cell(row, config.WordColumn)
		translation := cell(row, config.TranslationColumn)
		if word == "" || translation == "" {
			result.Skipped++
			continue
		}

		difficulty := 1
		if d := cell(row, config.DifficultyColumn); d != "" {
			if n, err := strconv.Atoi(d); err == nil && n >= 1 && n <= 5 {
				difficulty = n
			}
		}

		entry := &models.Word{
			Word:        word,
			Translation: translation,
			Description: cell(row, config.DescriptionColumn),
			Examples:    cell(row, config.ExamplesColumn),
			Difficulty:  difficulty,
		}
		if err := wordRepo.CreateOrUpdate(ctx, entry); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, word, err))
			continue
		}
		result.Imported++
	}

	return result, nil
}
