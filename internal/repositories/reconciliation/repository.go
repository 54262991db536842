package reconciliation

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const rowBatchSize = 500

var runColumns = []string{
	"id", "tenant_id", "entity_type", "import_id", "status",
	"config_fingerprint", "population_fingerprint", "population_size",
	"row_count", "duplicate_row_count", "unassessable_row_count",
	"started_at", "completed_at",
}

var rowColumns = []string{"run_id", "row_index", "assessment", "assessable", "duplicates", "warnings"}

// Repository handles reconciliation run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reconciliation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateRun inserts a run in the running state
func (r *Repository) CreateRun(ctx context.Context, run models.ReconciliationRun) (*models.ReconciliationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.CreateRun")
	defer span.End()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("reconciliation_runs")
	ib.Cols(runColumns...)
	ib.Values(run.ID, run.TenantID, run.EntityType, run.ImportID, run.Status,
		run.ConfigFingerprint, run.PopulationFingerprint, run.PopulationSize,
		run.RowCount, run.DuplicateRowCount, run.UnassessableRowCount,
		run.StartedAt, run.CompletedAt)

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Failed to create reconciliation run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create reconciliation run")
	}
	return &run, nil
}

// SaveRows writes row results for a run in index order
func (r *Repository) SaveRows(ctx context.Context, runID string, rows map[int]models.RowResult) error {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.SaveRows")
	defer span.End()

	indexes := make([]int, 0, len(rows))
	for i := range rows {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for start := 0; start < len(indexes); start += rowBatchSize {
		end := min(start+rowBatchSize, len(indexes))

		ib := database.NewInsertBuilder()
		ib.InsertInto("reconciliation_rows")
		ib.Cols(rowColumns...)
		for _, i := range indexes[start:end] {
			stored, err := models.NewReconciliationRow(runID, rows[i])
			if err != nil {
				return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to encode row %d", i)
			}
			ib.Values(stored.RunID, stored.RowIndex, stored.Assessment, stored.Assessable, string(stored.Duplicates), string(stored.Warnings))
		}
		database.OnConflictUpdate(ib, []string{"run_id", "row_index"}, "assessment", "assessable", "duplicates", "warnings")

		query, args := ib.Build()
		if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("run_id", runID).Error("Failed to save reconciliation rows")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save reconciliation rows")
		}
	}
	return nil
}

// CompleteRun stores the final status and counts of a run
func (r *Repository) CompleteRun(ctx context.Context, run models.ReconciliationRun) error {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.CompleteRun")
	defer span.End()

	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}

	ub := database.NewUpdateBuilder()
	ub.Update("reconciliation_runs")
	ub.Set(
		ub.Assign("status", run.Status),
		ub.Assign("row_count", run.RowCount),
		ub.Assign("duplicate_row_count", run.DuplicateRowCount),
		ub.Assign("unassessable_row_count", run.UnassessableRowCount),
		ub.Assign("completed_at", completed),
	)
	ub.Where(
		ub.Equal("id", run.ID),
		ub.Equal("tenant_id", run.TenantID),
	)

	query, args := ub.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Failed to complete reconciliation run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete reconciliation run")
	}
	return nil
}

// Finish saves the rows and completes the run in one transaction
func (r *Repository) Finish(ctx context.Context, run models.ReconciliationRun, rows map[int]models.RowResult) error {
	return database.WithTx(ctx, r.db, r.logger, func(ctx context.Context) error {
		if err := r.SaveRows(ctx, run.ID, rows); err != nil {
			return err
		}
		return r.CompleteRun(ctx, run)
	})
}

// GetRun retrieves a run
func (r *Repository) GetRun(ctx context.Context, tenantID, id string) (*models.ReconciliationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.GetRun")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From("reconciliation_runs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var run models.ReconciliationRun
	if err := database.Conn(ctx, r.db).GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "reconciliation run %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get reconciliation run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciliation run")
	}
	return &run, nil
}

// ListRuns returns a page of runs, newest first, and the total count
func (r *Repository) ListRuns(ctx context.Context, tenantID string, entityType *string, page, pageSize int) ([]models.ReconciliationRun, int, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.ListRuns")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("reconciliation_runs")
	countSb.Where(countSb.Equal("tenant_id", tenantID))
	if entityType != nil {
		countSb.Where(countSb.Equal("entity_type", *entityType))
	}

	countQuery, countArgs := countSb.Build()
	var total int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count reconciliation runs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list reconciliation runs")
	}

	sb := database.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From("reconciliation_runs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	if entityType != nil {
		sb.Where(sb.Equal("entity_type", *entityType))
	}
	sb.OrderBy("started_at DESC", "id")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var runs []models.ReconciliationRun
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reconciliation runs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list reconciliation runs")
	}
	return runs, total, nil
}

// ListRows returns the row results of a run in row order
func (r *Repository) ListRows(ctx context.Context, tenantID, runID string) ([]models.RowResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.Repository.ListRows")
	defer span.End()

	if _, err := r.GetRun(ctx, tenantID, runID); err != nil {
		return nil, err
	}

	sb := database.NewSelectBuilder()
	sb.Select(rowColumns...)
	sb.From("reconciliation_rows")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("row_index")

	query, args := sb.Build()
	var stored []models.ReconciliationRow
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &stored, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reconciliation rows")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list reconciliation rows")
	}

	rows := make([]models.RowResult, len(stored))
	for i, s := range stored {
		row, err := s.RowResult()
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "row %d of run %s has invalid data", s.RowIndex, runID)
		}
		rows[i] = row
	}
	return rows, nil
}
