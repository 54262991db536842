// Package importer loads candidate and population files into raw rows and
// records. CSV, JSON, JSON lines, Parquet and XLSX are supported.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ramsey-B/clover/pkg/extractor"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Format is an input file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// DefaultIDColumn is the column read as the record id
const DefaultIDColumn = "id"

// Row is one raw input document
type Row = map[string]any

// Options controls how a file is read
type Options struct {
	// Format overrides detection from the file extension
	Format Format
	// Sheet selects the XLSX sheet; the first sheet is used when empty
	Sheet string
	// IDColumn names the column holding record ids
	IDColumn string
}

// DetectFormat infers the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".parquet":
		return FormatParquet, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file format: %s (supported: .csv, .json, .jsonl, .parquet, .xlsx)", filepath.Ext(path))
}

// LoadRows reads every row of a file
func LoadRows(path string, opts Options) ([]Row, error) {
	format := opts.Format
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	switch format {
	case FormatParquet:
		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return ReadParquet(file, info.Size())
	default:
		return ReadRows(file, format, opts)
	}
}

// ReadRows reads rows of a streaming format
func ReadRows(r io.Reader, format Format, opts Options) ([]Row, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatJSONL:
		return ReadJSONL(r)
	case FormatXLSX:
		return ReadXLSX(r, opts.Sheet)
	case FormatParquet:
		return nil, fmt.Errorf("parquet input must be read with ReadParquet")
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Records converts rows into records carrying one value per configured field.
// A field whose source fails on a row is left nil and noted in that record's
// warnings.
func Records(rows []Row, fields []models.FieldSpec, idColumn string) []models.Record {
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	ex := extractor.New()
	records := make([]models.Record, len(rows))
	for i, row := range rows {
		id := ""
		if v, ok := row[idColumn]; ok && v != nil {
			id = fmt.Sprint(v)
		}
		records[i] = ex.Record(id, row, fields)
	}
	return records
}

// LoadRecords reads a file and converts its rows into records
func LoadRecords(path string, fields []models.FieldSpec, opts Options) ([]models.Record, error) {
	rows, err := LoadRows(path, opts)
	if err != nil {
		return nil, err
	}
	return Records(rows, fields, opts.IDColumn), nil
}
