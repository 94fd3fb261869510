package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"

	"github.com/xuri/excelize/v2"
)

// ImportConfig はスプレッドシート取り込みの設定
type ImportConfig struct {
	SheetName        string // 空なら最初のシート
	ConceptColumn    int    // 0始まり
	DefinitionColumn int    // 0始まり
	SkipHeader       bool
}

// DefaultImportConfig は A列=概念, B列=定義, 1行目はヘッダー
func DefaultImportConfig() ImportConfig {
	return ImportConfig{ConceptColumn: 0, DefinitionColumn: 1, SkipHeader: true}
}

// ImportResult は取り込み結果
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// CardImporter は .xlsx からカードを取り込みます。
type CardImporter struct {
	api    DeckAPI
	logger *slog.Logger
}

func NewCardImporter(api DeckAPI, logger *slog.Logger) *CardImporter {
	return &CardImporter{api: api, logger: logger}
}

// ImportFile は path のシートを読み、1行ずつカードを作成します。
// 401 を受けたら即座に中断して ErrUnauthorized を返します。
func (im *CardImporter) ImportFile(ctx context.Context, deckID int, path string, cfg ImportConfig) (*ImportResult, error) {
	logger := middleware.GetLoggerOr(ctx, im.logger).With("deck_id", deckID, "file", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("CardImporter.ImportFile: failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("CardImporter.ImportFile: no sheets: %w", model.ErrInvalidInput)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("CardImporter.ImportFile: failed to read sheet %q: %w", sheet, err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if cfg.SkipHeader && i == 0 {
			continue
		}
		result.TotalProcessed++

		concept := cell(row, cfg.ConceptColumn)
		definition := cell(row, cfg.DefinitionColumn)
		if concept == "" || definition == "" {
			result.Skipped++
			if concept != "" || definition != "" {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: concept and definition are both required", rowNum))
			}
			continue
		}

		_, err := im.api.CreateCard(ctx, model.CreateCardRequest{DeckID: deckID, Concept: concept, Definition: definition})
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				return result, err
			}
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Created++
	}

	logger.Info("Import finished", "processed", result.TotalProcessed, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
