package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a reconciliation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial" // cancelled before every row finished
	RunStatusFailed    RunStatus = "failed"
)

// ReconciliationRun summarizes one batch reconciliation
type ReconciliationRun struct {
	ID                    string     `json:"id" db:"id"`
	TenantID              string     `json:"tenant_id" db:"tenant_id"`
	EntityType            string     `json:"entity_type" db:"entity_type"`
	ImportID              *string    `json:"import_id,omitempty" db:"import_id"`
	Status                RunStatus  `json:"status" db:"status"`
	ConfigFingerprint     string     `json:"config_fingerprint" db:"config_fingerprint"`
	PopulationFingerprint string     `json:"population_fingerprint" db:"population_fingerprint"`
	PopulationSize        int        `json:"population_size" db:"population_size"`
	RowCount              int        `json:"row_count" db:"row_count"`
	DuplicateRowCount     int        `json:"duplicate_row_count" db:"duplicate_row_count"`
	UnassessableRowCount  int        `json:"unassessable_row_count" db:"unassessable_row_count"`
	StartedAt             time.Time  `json:"started_at" db:"started_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ReconciliationRow is one persisted row result
type ReconciliationRow struct {
	RunID      string          `json:"run_id" db:"run_id"`
	RowIndex   int             `json:"row" db:"row_index"`
	Assessment Assessment      `json:"assessment" db:"assessment"`
	Assessable bool            `json:"assessable" db:"assessable"`
	Duplicates json.RawMessage `json:"duplicates" db:"duplicates"`
	Warnings   json.RawMessage `json:"warnings" db:"warnings"`
}

// RunSummary counts rows with duplicates and rows that could not be assessed
func RunSummary(rows map[int]RowResult) (withDuplicates, unassessable int) {
	for _, r := range rows {
		if len(r.Duplicates) > 0 {
			withDuplicates++
		}
		if !r.Assessable {
			unassessable++
		}
	}
	return withDuplicates, unassessable
}

// NewReconciliationRow converts a row result for storage
func NewReconciliationRow(runID string, r RowResult) (ReconciliationRow, error) {
	dups := r.Duplicates
	if dups == nil {
		dups = []DuplicateCandidate{}
	}
	duplicates, err := json.Marshal(dups)
	if err != nil {
		return ReconciliationRow{}, err
	}
	warns := r.Warnings
	if warns == nil {
		warns = []string{}
	}
	warnings, err := json.Marshal(warns)
	if err != nil {
		return ReconciliationRow{}, err
	}
	return ReconciliationRow{
		RunID:      runID,
		RowIndex:   r.Row,
		Assessment: r.Assessment,
		Assessable: r.Assessable,
		Duplicates: duplicates,
		Warnings:   warnings,
	}, nil
}

// RowResult decodes the stored row back into a result
func (r ReconciliationRow) RowResult() (RowResult, error) {
	out := RowResult{Row: r.RowIndex, Assessment: r.Assessment, Assessable: r.Assessable}
	if len(r.Duplicates) > 0 {
		if err := json.Unmarshal(r.Duplicates, &out.Duplicates); err != nil {
			return RowResult{}, err
		}
	}
	if len(r.Warnings) > 0 {
		if err := json.Unmarshal(r.Warnings, &out.Warnings); err != nil {
			return RowResult{}, err
		}
	}
	return out, nil
}
