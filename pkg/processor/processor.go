// Package processor reconciles import batches consumed from Kafka.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// DefaultLockTTL bounds how long one import may hold its lock
const DefaultLockTTL = 5 * time.Minute

// Reconciler is the part of the dedupe service the processor drives
type Reconciler interface {
	Configuration(ctx context.Context, tenantID, entityType string, override *models.MatchConfiguration) (models.MatchConfiguration, error)
	RecordsFromRows(cfg models.MatchConfiguration, rows []map[string]any) []models.Record
	Reconcile(ctx context.Context, req dedupe.ReconcileRequest) (*dedupe.ReconcileResult, error)
}

// Locker serializes work on one key across replicas
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Options tunes the processor
type Options struct {
	// Persist adds each reconciled batch to the stored population
	Persist bool
	LockTTL time.Duration
}

// ImportProcessor handles import batch messages
type ImportProcessor struct {
	reconciler Reconciler
	locker     Locker
	opts       Options
	logger     ectologger.Logger
}

// NewImportProcessor creates a processor. locker may be nil.
func NewImportProcessor(reconciler Reconciler, locker Locker, opts Options, logger ectologger.Logger) *ImportProcessor {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	return &ImportProcessor{
		reconciler: reconciler,
		locker:     locker,
		opts:       opts,
		logger:     logger,
	}
}

// Handle is a kafka.MessageHandler. A returned error leaves the message
// uncommitted so it is redelivered.
func (p *ImportProcessor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	batch := msg.ImportBatch
	if batch == nil {
		return kafka.ErrInvalidImportBatch
	}

	ctx, span := tracing.StartSpan(ctx, "processor.ImportProcessor.Handle",
		attribute.String("tenant_id", batch.TenantID),
		attribute.String("entity_type", batch.EntityType),
		attribute.String("import_id", batch.ImportID),
	)
	defer span.End()

	if p.locker == nil {
		return tracing.RecordError(span, p.process(ctx, batch))
	}
	// batches for one entity type serialize so each sees the rows the last persisted
	key := batch.TenantID + ":" + batch.EntityType
	return tracing.RecordError(span, p.locker.WithLock(ctx, key, p.opts.LockTTL, func(ctx context.Context) error {
		return p.process(ctx, batch)
	}))
}

func (p *ImportProcessor) process(ctx context.Context, batch *kafka.ImportBatchMessage) error {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   batch.TenantID,
		"entity_type": batch.EntityType,
		"import_id":   batch.ImportID,
		"rows":        len(batch.Rows),
	})

	if len(batch.Rows) == 0 {
		log.Debug("Empty import batch")
		return nil
	}

	cfg, err := p.reconciler.Configuration(ctx, batch.TenantID, batch.EntityType, nil)
	if err != nil {
		log.WithError(err).Error("Failed to resolve match configuration")
		return err
	}

	records := p.reconciler.RecordsFromRows(cfg, batch.Rows)

	result, err := p.reconciler.Reconcile(ctx, dedupe.ReconcileRequest{
		TenantID:   batch.TenantID,
		EntityType: batch.EntityType,
		ImportID:   batch.ImportID,
		Records:    records,
		Config:     &cfg,
		Persist:    p.opts.Persist,
	})
	if err != nil {
		if dedupe.IsCancelled(err) && result != nil {
			log.WithField("run_id", result.Run.ID).Warn("Import reconciliation interrupted; batch will be redelivered")
		}
		return err
	}

	log.WithFields(map[string]any{
		"run_id":            result.Run.ID,
		"duplicate_rows":    result.Run.DuplicateRowCount,
		"unassessable_rows": result.Run.UnassessableRowCount,
	}).Info("Processed import batch")
	return nil
}
