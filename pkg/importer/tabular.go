package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCSV reads a CSV file with a header row. Blank cells become nil.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromTable(records)
}

// ReadXLSX reads a worksheet with a header row. Blank cells become nil.
func ReadXLSX(r io.Reader, sheet string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("no sheets found in Excel file")
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of sheet %q: %w", sheet, err)
	}
	return fromTable(rows)
}

func fromTable(table [][]string) ([]Row, error) {
	if len(table) == 0 {
		return []Row{}, nil
	}

	headers := make([]string, len(table[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range table[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("column %d has an empty header", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		headers[i] = h
	}

	rows := make([]Row, 0, len(table)-1)
	for _, cells := range table[1:] {
		if blank(cells) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
				row[h] = cells[i]
			} else {
				row[h] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
