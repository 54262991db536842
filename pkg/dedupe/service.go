// Package dedupe runs duplicate detection and batch reconciliation for a
// tenant's stored population, persisting and publishing the outcome.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/extractor"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resultcache"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// RecordStore reads and writes the stored population
type RecordStore interface {
	ListByEntityType(ctx context.Context, tenantID, entityType string) ([]models.Record, error)
	UpsertBatch(ctx context.Context, tenantID, entityType string, records []models.Record) ([]string, error)
}

// ConfigStore reads stored match configurations
type ConfigStore interface {
	Get(ctx context.Context, tenantID, entityType string) (*models.StoredMatchConfiguration, error)
}

// RunStore persists reconciliation runs
type RunStore interface {
	CreateRun(ctx context.Context, run models.ReconciliationRun) (*models.ReconciliationRun, error)
	Finish(ctx context.Context, run models.ReconciliationRun, rows map[int]models.RowResult) error
}

// DuplicateLinker records possible-duplicate edges
type DuplicateLinker interface {
	LinkDuplicates(ctx context.Context, tenantID, entityType, runID string, links []graph.Link) error
}

// ReportPublisher announces finished runs
type ReportPublisher interface {
	PublishDuplicateReport(ctx context.Context, event *kafka.DuplicateReportEvent) error
}

// Dependencies are the collaborators of the service. Graph, Publisher and
// Cache are optional.
type Dependencies struct {
	Records   RecordStore
	Configs   ConfigStore
	Runs      RunStore
	Graph     DuplicateLinker
	Publisher ReportPublisher
	Cache     *resultcache.Cache
}

// Config tunes the service
type Config struct {
	Workers int
}

// Service coordinates the matching core with storage and messaging
type Service struct {
	deps      Dependencies
	workers   int
	extractor *extractor.Extractor
	logger    ectologger.Logger
}

// NewService creates a new dedupe service
func NewService(cfg Config, deps Dependencies, logger ectologger.Logger) *Service {
	return &Service{
		deps:      deps,
		workers:   cfg.Workers,
		extractor: extractor.New(),
		logger:    logger,
	}
}

// ReconcileRequest is one import batch to reconcile
type ReconcileRequest struct {
	TenantID   string
	EntityType string
	ImportID   string
	Records    []models.Record
	// Config overrides the stored configuration when set
	Config *models.MatchConfiguration
	// Persist adds the batch to the population after reconciliation
	Persist bool
}

// ReconcileResult is a finished run with its rows in row order
type ReconcileResult struct {
	Run  models.ReconciliationRun `json:"run"`
	Rows []models.RowResult       `json:"rows"`
}

// Configuration returns override when set (after validating it), otherwise
// the stored configuration for the entity type.
func (s *Service) Configuration(ctx context.Context, tenantID, entityType string, override *models.MatchConfiguration) (models.MatchConfiguration, error) {
	if override != nil {
		if err := matching.ValidateConfiguration(*override); err != nil {
			return models.MatchConfiguration{}, err
		}
		return *override, nil
	}
	if s.deps.Configs == nil {
		return models.MatchConfiguration{}, httperror.NewHTTPError(http.StatusBadRequest, "a match configuration is required")
	}
	stored, err := s.deps.Configs.Get(ctx, tenantID, entityType)
	if err != nil {
		return models.MatchConfiguration{}, err
	}
	return stored.MatchConfiguration, nil
}

// RecordsFromRows builds records from raw documents using each field's
// source expression. A string "id" in a row becomes the record id. A source
// that fails on one row only nils that row's field; the failure travels with
// the record as a warning.
func (s *Service) RecordsFromRows(cfg models.MatchConfiguration, rows []map[string]any) []models.Record {
	records := make([]models.Record, len(rows))
	for i, row := range rows {
		id, _ := row["id"].(string)
		records[i] = s.extractor.Record(id, row, cfg.Fields)
	}
	return records
}

// Compare scores two records under cfg and explains the result
func (s *Service) Compare(cfg models.MatchConfiguration, a, b models.Record) (models.SimilarityResult, error) {
	m, err := matching.NewMatcher(cfg, matching.WithLogger(s.logger))
	if err != nil {
		return models.SimilarityResult{}, err
	}
	return m.Compare(a, b), nil
}

// FindDuplicates ranks the stored records a candidate may duplicate
func (s *Service) FindDuplicates(ctx context.Context, tenantID, entityType string, candidate models.Record, override *models.MatchConfiguration) (models.DetectionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.FindDuplicates",
		attribute.String("tenant_id", tenantID),
		attribute.String("entity_type", entityType),
	)
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "FindDuplicates",
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"record_id":   candidate.ID,
	})

	cfg, err := s.Configuration(ctx, tenantID, entityType, override)
	if err != nil {
		return models.DetectionResult{}, tracing.RecordError(span, err)
	}

	population, err := s.deps.Records.ListByEntityType(ctx, tenantID, entityType)
	if err != nil {
		return models.DetectionResult{}, tracing.RecordError(span, err)
	}

	key := resultcache.Key(tenantID, entityType, cfg, population, candidate)
	if cached, ok := s.deps.Cache.Get(ctx, key); ok {
		log.Debug("Served duplicates from cache")
		return cached, nil
	}

	detector, err := matching.NewDetector(cfg, matching.WithLogger(s.logger))
	if err != nil {
		return models.DetectionResult{}, tracing.RecordError(span, err)
	}
	result := detector.Detect(candidate, detector.BuildIndex(population))

	metrics.ComparisonsTotal.WithLabelValues(entityType, "true").Add(float64(result.Comparable))
	metrics.ComparisonsTotal.WithLabelValues(entityType, "false").Add(float64(result.Shortlisted - result.Comparable))
	metrics.DuplicatesFoundTotal.WithLabelValues(entityType).Add(float64(len(result.Duplicates)))

	s.deps.Cache.Set(ctx, key, result)

	log.WithFields(map[string]any{
		"population":  len(population),
		"shortlisted": result.Shortlisted,
		"duplicates":  len(result.Duplicates),
		"assessment":  result.Assessment,
	}).Info("Found duplicates")
	return result, nil
}

// Reconcile runs every row of an import batch against the stored population,
// persists the run, links duplicates in the graph and publishes a report.
// Graph and publish failures are logged; the run is already stored.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.Reconcile",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("entity_type", req.EntityType),
		attribute.String("import_id", req.ImportID),
		attribute.Int("rows", len(req.Records)),
	)
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Reconcile",
		"tenant_id":   req.TenantID,
		"entity_type": req.EntityType,
		"import_id":   req.ImportID,
		"rows":        len(req.Records),
	})
	start := time.Now()

	cfg, err := s.Configuration(ctx, req.TenantID, req.EntityType, req.Config)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	reconciler, err := matching.NewReconciler(cfg, matching.WithLogger(s.logger), matching.WithWorkers(s.workers))
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	population, err := s.deps.Records.ListByEntityType(ctx, req.TenantID, req.EntityType)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	run := models.ReconciliationRun{
		TenantID:              req.TenantID,
		EntityType:            req.EntityType,
		Status:                models.RunStatusRunning,
		ConfigFingerprint:     fingerprint.Config(cfg),
		PopulationFingerprint: fingerprint.Records(population),
		PopulationSize:        len(population),
		RowCount:              len(req.Records),
	}
	if req.ImportID != "" {
		run.ImportID = &req.ImportID
	}
	created, err := s.deps.Runs.CreateRun(ctx, run)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	run = *created
	log = log.WithField("run_id", run.ID)

	rows, reconcileErr := reconciler.ReconcileBatch(ctx, req.Records, population)
	run.Status = models.RunStatusCompleted
	if reconcileErr != nil {
		run.Status = models.RunStatusPartial
		log.WithError(reconcileErr).WithField("completed", len(rows)).Warn("Reconciliation cancelled")
	}
	run.DuplicateRowCount, run.UnassessableRowCount = models.RunSummary(rows)
	now := time.Now().UTC()
	run.CompletedAt = &now

	// the caller may have cancelled; the partial run is still recorded
	storeCtx := context.WithoutCancel(ctx)
	if err := s.deps.Runs.Finish(storeCtx, run, rows); err != nil {
		metrics.ReconciliationDuration.WithLabelValues(req.EntityType, string(models.RunStatusFailed)).Observe(time.Since(start).Seconds())
		return nil, tracing.RecordError(span, err)
	}

	ordered := OrderedRows(rows)
	s.recordMetrics(req.EntityType, ordered)
	metrics.ReconciliationDuration.WithLabelValues(req.EntityType, string(run.Status)).Observe(time.Since(start).Seconds())

	if reconcileErr != nil {
		return &ReconcileResult{Run: run, Rows: ordered}, tracing.RecordError(span, reconcileErr)
	}

	if req.Persist {
		if _, err := s.deps.Records.UpsertBatch(ctx, req.TenantID, req.EntityType, req.Records); err != nil {
			return nil, tracing.RecordError(span, fmt.Errorf("run %s stored but import was not added to the population: %w", run.ID, err))
		}
	}

	if s.deps.Graph != nil {
		if err := s.deps.Graph.LinkDuplicates(ctx, req.TenantID, req.EntityType, run.ID, graph.LinksFromRows(run.ID, rows)); err != nil {
			log.WithError(err).Warn("Failed to link duplicates in graph")
		}
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDuplicateReport(ctx, kafka.NewDuplicateReportEvent(run, ordered)); err != nil {
			log.WithError(err).Warn("Failed to publish duplicate report")
		}
	}

	log.WithFields(map[string]any{
		"duplicate_rows":    run.DuplicateRowCount,
		"unassessable_rows": run.UnassessableRowCount,
		"elapsed":           time.Since(start).String(),
	}).Info("Reconciled import batch")

	return &ReconcileResult{Run: run, Rows: ordered}, nil
}

// IsCancelled reports whether err came from a cancelled reconciliation
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) recordMetrics(entityType string, rows []models.RowResult) {
	for _, r := range rows {
		metrics.RowAssessmentsTotal.WithLabelValues(entityType, string(r.Assessment)).Inc()
		metrics.DuplicatesFoundTotal.WithLabelValues(entityType).Add(float64(len(r.Duplicates)))
		if len(r.Warnings) > 0 {
			metrics.RowWarningsTotal.WithLabelValues(entityType).Add(float64(len(r.Warnings)))
		}
	}
}

// OrderedRows flattens a row map into row order
func OrderedRows(rows map[int]models.RowResult) []models.RowResult {
	maxRow := -1
	for i := range rows {
		maxRow = max(maxRow, i)
	}
	out := make([]models.RowResult, 0, len(rows))
	for i := 0; i <= maxRow; i++ {
		if r, ok := rows[i]; ok {
			out = append(out, r)
		}
	}
	return out
}
