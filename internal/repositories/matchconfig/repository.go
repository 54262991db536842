package matchconfig

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"tenant_id", "entity_type", "fields", "threshold", "blocking_field", "blocking_normalizers", "version", "created_at", "updated_at"}

// row is the table shape of a stored configuration
type row struct {
	TenantID            string                             `db:"tenant_id"`
	EntityType          string                             `db:"entity_type"`
	Fields              database.JSONB[[]models.FieldSpec] `db:"fields"`
	Threshold           float64                            `db:"threshold"`
	BlockingField       sql.NullString                     `db:"blocking_field"`
	BlockingNormalizers database.JSONB[[]string]           `db:"blocking_normalizers"`
	Version             int                                `db:"version"`
	CreatedAt           time.Time                          `db:"created_at"`
	UpdatedAt           time.Time                          `db:"updated_at"`
}

func (r row) model() models.StoredMatchConfiguration {
	return models.StoredMatchConfiguration{
		TenantID:   r.TenantID,
		EntityType: r.EntityType,
		Version:    r.Version,
		MatchConfiguration: models.MatchConfiguration{
			Fields:              r.Fields.Data,
			Threshold:           r.Threshold,
			BlockingField:       r.BlockingField.String,
			BlockingNormalizers: r.BlockingNormalizers.Data,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Repository handles match configuration persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match configuration repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the configuration for an entity type
func (r *Repository) Get(ctx context.Context, tenantID, entityType string) (*models.StoredMatchConfiguration, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_configurations")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
	)

	query, args := sb.Build()
	var found row
	if err := database.Conn(ctx, r.db).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no match configuration for entity type %s", entityType)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match configuration")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match configuration")
	}

	cfg := found.model()
	return &cfg, nil
}

// List retrieves every configuration of a tenant
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.StoredMatchConfiguration, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_configurations")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("entity_type")

	query, args := sb.Build()
	var rows []row
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match configurations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match configurations")
	}

	configs := make([]models.StoredMatchConfiguration, len(rows))
	for i, found := range rows {
		configs[i] = found.model()
	}
	return configs, nil
}

// Upsert validates and stores a configuration, bumping its version
func (r *Repository) Upsert(ctx context.Context, tenantID, entityType string, cfg models.MatchConfiguration) (*models.StoredMatchConfiguration, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Upsert",
		"tenant_id":   tenantID,
		"entity_type": entityType,
	})

	if err := matching.ValidateConfiguration(cfg); err != nil {
		log.WithError(err).Warn("Rejected invalid match configuration")
		return nil, err
	}

	now := time.Now().UTC()
	var blockingField sql.NullString
	if cfg.BlockingField != "" {
		blockingField = sql.NullString{String: cfg.BlockingField, Valid: true}
	}
	normalizers := cfg.BlockingNormalizers
	if normalizers == nil {
		normalizers = []string{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("match_configurations")
	ib.Cols(columns...)
	ib.Values(tenantID, entityType, database.NewJSONB(cfg.Fields), cfg.Threshold, blockingField, database.NewJSONB(normalizers), 1, now, now)
	ib.SQL("ON CONFLICT (tenant_id, entity_type) DO UPDATE SET " +
		database.Excluded("fields") + ", " +
		database.Excluded("threshold") + ", " +
		database.Excluded("blocking_field") + ", " +
		database.Excluded("blocking_normalizers") + ", " +
		database.Excluded("updated_at") + ", " +
		"version = match_configurations.version + 1")
	ib.SQL("RETURNING " + strings.Join(columns, ", "))

	query, args := ib.Build()
	var stored row
	if err := database.Conn(ctx, r.db).GetContext(ctx, &stored, query, args...); err != nil {
		log.WithError(err).Error("Failed to upsert match configuration")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save match configuration")
	}

	log.WithField("version", stored.Version).Info("Saved match configuration")
	result := stored.model()
	return &result, nil
}

// Delete removes the configuration for an entity type
func (r *Repository) Delete(ctx context.Context, tenantID, entityType string) error {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom("match_configurations")
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("entity_type", entityType),
	)

	query, args := db.Build()
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match configuration")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match configuration")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "no match configuration for entity type %s", entityType)
	}
	return nil
}
