package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Summary"
	sheetDuplicates = "Duplicates"
	sheetWarnings   = "Warnings"
)

var (
	duplicateHeaders = []string{"Row", "Candidate ID", "Existing ID", "Existing Index", "Score", "Strong Fields", "Assessment"}
	warningHeaders   = []string{"Row", "Assessment", "Warning"}
)

func writeXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return err
	}
	summary := [][]any{
		{"Generated At", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Run ID", r.RunID},
		{"Entity Type", r.EntityType},
		{"Threshold", r.Threshold},
		{"Rows", r.Summary.Rows},
		{"Rows With Duplicates", r.Summary.RowsWithDuplicates},
		{"Duplicate Pairs", r.Summary.DuplicatePairs},
		{"Unassessable Rows", r.Summary.Unassessable},
		{"Failed Rows", r.Summary.Failed},
	}
	for i, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &line); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheetSummary, "A", "A", 22)
	_ = f.SetColWidth(sheetSummary, "B", "B", 30)

	dupIndex, err := f.NewSheet(sheetDuplicates)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, sheetDuplicates, duplicateHeaders, headerStyle); err != nil {
		return err
	}
	line := 2
	for _, row := range r.Rows {
		for _, d := range row.Duplicates {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			values := []any{row.Row, d.CandidateID, d.ExistingID, d.ExistingIndex, d.Score, strings.Join(d.StrongFields, ", "), string(row.Assessment)}
			if err := f.SetSheetRow(sheetDuplicates, cell, &values); err != nil {
				return err
			}
			line++
		}
	}

	if _, err := f.NewSheet(sheetWarnings); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, sheetWarnings, warningHeaders, headerStyle); err != nil {
		return err
	}
	line = 2
	for _, row := range r.Rows {
		for _, warning := range row.Warnings {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			values := []any{row.Row, string(row.Assessment), warning}
			if err := f.SetSheetRow(sheetWarnings, cell, &values); err != nil {
				return err
			}
			line++
		}
	}
	_ = f.SetColWidth(sheetWarnings, "C", "C", 60)

	f.SetActiveSheet(dupIndex)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	first, _ := excelize.ColumnNumberToName(1)
	last, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, first, last, 15)
}
