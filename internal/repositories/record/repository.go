package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const DefaultBatchSize = 100

var columns = []string{"id", "tenant_id", "entity_type", "data", "fingerprint", "created_at", "updated_at"}

// Repository handles population record persistence
type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	batchSize int
}

// NewRepository creates a new record repository. Upserts are written in
// chunks of batchSize rows.
func NewRepository(db database.DB, logger ectologger.Logger, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Repository{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
	}
}

// ListByEntityType returns the population for an entity type in insertion order
func (r *Repository) ListByEntityType(ctx context.Context, tenantID, entityType string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.ListByEntityType")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
	)
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var stored []models.StoredRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &stored, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("Failed to list records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list records")
	}

	records := make([]models.Record, 0, len(stored))
	for _, s := range stored {
		rec, err := s.Record()
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("id", s.ID).Error("Failed to decode record data")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "record %s has invalid data", s.ID)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get retrieves one record
func (r *Repository) Get(ctx context.Context, tenantID, entityType, id string) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var stored models.StoredRecord
	if err := database.Conn(ctx, r.db).GetContext(ctx, &stored, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("record %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get record")
	}

	rec, err := stored.Record()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "record %s has invalid data", id)
	}
	return &rec, nil
}

// Count returns the population size for an entity type
func (r *Repository) Count(ctx context.Context, tenantID, entityType string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.Count")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
	)

	query, args := sb.Build()
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count records")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count records")
	}
	return count, nil
}

// UpsertBatch inserts or replaces records in chunks inside one transaction.
// Records without an ID are assigned one. The stored IDs are returned in input
// order. When an ID repeats, the last record with that ID is the one stored.
func (r *Repository) UpsertBatch(ctx context.Context, tenantID, entityType string, records []models.Record) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.UpsertBatch")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "UpsertBatch",
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"records":     len(records),
		"batch_size":  r.batchSize,
	})

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		if ids[i] == "" {
			ids[i] = uuid.New().String()
		}
	}
	now := time.Now().UTC()

	err := database.WithTx(ctx, r.db, r.logger, func(ctx context.Context) error {
		for start := 0; start < len(records); start += r.batchSize {
			end := min(start+r.batchSize, len(records))

			ib := database.NewInsertBuilder()
			ib.InsertInto("records")
			ib.Cols(columns...)
			for _, offset := range latestPerID(ids[start:end]) {
				i := start + offset
				rec := records[i]
				rec.ID = ids[i]

				data, err := json.Marshal(rec.Fields)
				if err != nil {
					return httperror.NewHTTPErrorf(http.StatusBadRequest, "record %d has unencodable fields: %v", i, err)
				}
				ib.Values(rec.ID, tenantID, entityType, string(data), fingerprint.Record(rec), now, now)
			}
			database.OnConflictUpdate(ib, []string{"tenant_id", "entity_type", "id"}, "data", "fingerprint", "updated_at")

			query, args := ib.Build()
			if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
				log.WithError(err).WithField("offset", start).Error("Failed to upsert record batch")
				return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert records")
			}
		}
		return nil
	})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	log.Info("Upserted records")
	return ids, nil
}

// latestPerID returns the position of the last occurrence of each id, in
// input order. A single upsert statement cannot affect the same row twice.
func latestPerID(ids []string) []int {
	last := make(map[string]int, len(ids))
	for i, id := range ids {
		last[id] = i
	}
	positions := make([]int, 0, len(last))
	for i, id := range ids {
		if last[id] == i {
			positions = append(positions, i)
		}
	}
	return positions
}
