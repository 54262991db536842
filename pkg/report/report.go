// Package report renders reconciliation results as JSON, YAML or XLSX
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Format is an output format
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// Summary counts the rows of a report
type Summary struct {
	Rows               int `json:"rows" yaml:"rows"`
	RowsWithDuplicates int `json:"rows_with_duplicates" yaml:"rows_with_duplicates"`
	DuplicatePairs     int `json:"duplicate_pairs" yaml:"duplicate_pairs"`
	Unassessable       int `json:"unassessable" yaml:"unassessable"`
	Failed             int `json:"failed" yaml:"failed"`
}

// Report is a rendered reconciliation
type Report struct {
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	RunID       string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	EntityType  string             `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	Threshold   float64            `json:"threshold" yaml:"threshold"`
	Summary     Summary            `json:"summary" yaml:"summary"`
	Rows        []models.RowResult `json:"rows" yaml:"rows"`
}

// New builds a report with rows sorted by row index
func New(cfg models.MatchConfiguration, rows []models.RowResult) *Report {
	sorted := make([]models.RowResult, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Threshold:   cfg.Threshold,
		Rows:        sorted,
	}
	for _, row := range sorted {
		r.Summary.Rows++
		if len(row.Duplicates) > 0 {
			r.Summary.RowsWithDuplicates++
			r.Summary.DuplicatePairs += len(row.Duplicates)
		}
		if !row.Assessable {
			r.Summary.Unassessable++
		}
		if row.Assessment == models.AssessmentFailed {
			r.Summary.Failed++
		}
	}
	return r
}

// DetectFormat infers the output format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported report format: %s (supported: .json, .yaml, .xlsx)", filepath.Ext(path))
}

// Write renders the report to w
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case FormatXLSX:
		return writeXLSX(w, r)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// WriteFile renders the report to path, choosing the format by extension
func WriteFile(path string, r *Report) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, format, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
