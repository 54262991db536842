package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Header keys set on produced messages and read from consumed ones
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderEntityType    = "entity_type"
	HeaderImportID      = "import_id"
	HeaderTraceParent   = "traceparent"
	HeaderSchemaVersion = "schema_version"
)

// EventDuplicatesReconciled is the event type of a DuplicateReportEvent
const EventDuplicatesReconciled = "duplicates.reconciled"

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	ImportBatch *ImportBatchMessage
}

// ImportBatchMessage asks for an import batch to be reconciled against the
// stored population of its entity type. Rows are raw documents; each
// configured field is read from its source expression.
type ImportBatchMessage struct {
	TenantID   string           `json:"tenant_id"`
	EntityType string           `json:"entity_type"`
	ImportID   string           `json:"import_id"`
	Rows       []map[string]any `json:"rows"`
}

// ErrInvalidImportBatch is returned for batches missing required routing fields
var ErrInvalidImportBatch = errors.New("import batch requires tenant_id, entity_type and import_id")

// ParseImportBatch parses the message value as an import batch. Tenant and
// entity type fall back to headers.
func (m *IncomingMessage) ParseImportBatch() error {
	var batch ImportBatchMessage
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return err
	}
	if batch.TenantID == "" {
		batch.TenantID = m.Headers[HeaderTenantID]
	}
	if batch.EntityType == "" {
		batch.EntityType = m.Headers[HeaderEntityType]
	}
	if batch.ImportID == "" {
		batch.ImportID = m.Headers[HeaderImportID]
	}
	if batch.TenantID == "" || batch.EntityType == "" || batch.ImportID == "" {
		return ErrInvalidImportBatch
	}
	m.ImportBatch = &batch
	return nil
}

// RowDuplicates lists the existing records one import row may duplicate
type RowDuplicates struct {
	Row          int                `json:"row"`
	Assessment   models.Assessment  `json:"assessment"`
	DuplicateIDs []string           `json:"duplicate_ids"`
	Scores       map[string]float64 `json:"scores,omitempty"`
}

// DuplicateReportEvent announces the outcome of a reconciliation run
type DuplicateReportEvent struct {
	EventType            string           `json:"event_type"`
	TenantID             string           `json:"tenant_id"`
	EntityType           string           `json:"entity_type"`
	ImportID             string           `json:"import_id,omitempty"`
	RunID                string           `json:"run_id"`
	Status               models.RunStatus `json:"status"`
	RowCount             int              `json:"row_count"`
	DuplicateRowCount    int              `json:"duplicate_row_count"`
	UnassessableRowCount int              `json:"unassessable_row_count"`
	Rows                 []RowDuplicates  `json:"rows"`
	Timestamp            time.Time        `json:"timestamp"`
}

// NewDuplicateReportEvent summarizes a run. Only rows with duplicates or
// without a clean assessment are listed, in row order.
func NewDuplicateReportEvent(run models.ReconciliationRun, rows []models.RowResult) *DuplicateReportEvent {
	event := &DuplicateReportEvent{
		EventType:            EventDuplicatesReconciled,
		TenantID:             run.TenantID,
		EntityType:           run.EntityType,
		RunID:                run.ID,
		Status:               run.Status,
		RowCount:             run.RowCount,
		DuplicateRowCount:    run.DuplicateRowCount,
		UnassessableRowCount: run.UnassessableRowCount,
		Rows:                 []RowDuplicates{},
	}
	if run.ImportID != nil {
		event.ImportID = *run.ImportID
	}

	for _, r := range rows {
		if len(r.Duplicates) == 0 && r.Assessment == models.AssessmentAssessed {
			continue
		}
		entry := RowDuplicates{Row: r.Row, Assessment: r.Assessment, DuplicateIDs: []string{}}
		if len(r.Duplicates) > 0 {
			entry.Scores = make(map[string]float64, len(r.Duplicates))
		}
		for _, d := range r.Duplicates {
			entry.DuplicateIDs = append(entry.DuplicateIDs, d.ExistingID)
			entry.Scores[d.ExistingID] = d.Score
		}
		event.Rows = append(event.Rows, entry)
	}
	return event
}
