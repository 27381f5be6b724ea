package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
)

// Service is a tiny façade over the extraction store that produces XLSX
// bytes for exports.
type Service struct {
	extractions repository.ExtractionStore
	logger      *slog.Logger
}

func NewService(extractions repository.ExtractionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractions: extractions, logger: logger}
}

// ExportExtractionsXLSX returns an XLSX workbook (as bytes) with every
// extraction belonging to the user, newest first.
func (s *Service) ExportExtractionsXLSX(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	start := time.Now()

	recs, err := s.extractions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Extracted At",
		"Document",
		"BI-RADS",
		"Summary",
		"Processing Time (ms)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.CreatedAt.UTC().Format("2006-01-02 15:04"))
		write(2, r.DocumentFilename)

		if r.BiradsScore != nil {
			write(3, *r.BiradsScore)
		} else {
			write(3, "")
		}

		summary := ""
		if r.Summary != nil {
			summary = *r.Summary
		}
		write(4, truncate(summary, 140))

		if r.ProcessingTimeMs != nil {
			write(5, *r.ProcessingTimeMs)
		} else {
			write(5, "")
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 18) // timestamp
	_ = f.SetColWidth(sheet, "B", "B", 36) // filename
	_ = f.SetColWidth(sheet, "C", "C", 10) // birads
	_ = f.SetColWidth(sheet, "D", "D", 60) // summary
	_ = f.SetColWidth(sheet, "E", "E", 20) // timing

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID.String(),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
