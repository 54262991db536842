package duplicates

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes"
)

// Service is the dedupe functionality exposed over HTTP
type Service interface {
	Configuration(ctx context.Context, tenantID, entityType string, override *models.MatchConfiguration) (models.MatchConfiguration, error)
	RecordsFromRows(cfg models.MatchConfiguration, rows []map[string]any) []models.Record
	Compare(cfg models.MatchConfiguration, a, b models.Record) (models.SimilarityResult, error)
	FindDuplicates(ctx context.Context, tenantID, entityType string, candidate models.Record, override *models.MatchConfiguration) (models.DetectionResult, error)
	Reconcile(ctx context.Context, req dedupe.ReconcileRequest) (*dedupe.ReconcileResult, error)
}

// Register registers the duplicate routes
func Register(g *echo.Group) {
	g.POST("/find", Find)
	g.POST("/reconcile", Reconcile)
	g.POST("/compare", Compare)
}

// FindRequest is the request body for finding duplicates of one record
type FindRequest struct {
	EntityType string                     `json:"entity_type" validate:"required"`
	Record     map[string]any             `json:"record" validate:"required"`
	Config     *models.MatchConfiguration `json:"config,omitempty"`
}

// Find ranks the stored records the posted record may duplicate
// @Summary Find duplicates
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param body body FindRequest true "Candidate record"
// @Success 200 {object} models.DetectionResult
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/duplicates/find [post]
func Find(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req FindRequest
	if err := routes.Bind(c, &req); err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cfg, err := service.Configuration(ctx, tenantID, req.EntityType, req.Config)
	if err != nil {
		return err
	}
	records := service.RecordsFromRows(cfg, []map[string]any{req.Record})

	result, err := service.FindDuplicates(ctx, tenantID, req.EntityType, records[0], &cfg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ReconcileRequest is the request body for reconciling an import batch
type ReconcileRequest struct {
	EntityType string                     `json:"entity_type" validate:"required"`
	ImportID   string                     `json:"import_id"`
	Records    []map[string]any           `json:"records" validate:"required"`
	Config     *models.MatchConfiguration `json:"config,omitempty"`
	Persist    bool                       `json:"persist"`
}

// Reconcile checks every posted row against the stored population
// @Summary Reconcile an import batch
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param body body ReconcileRequest true "Import batch"
// @Success 200 {object} dedupe.ReconcileResult
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/duplicates/reconcile [post]
func Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req ReconcileRequest
	if err := routes.Bind(c, &req); err != nil {
		return err
	}
	if req.ImportID == "" {
		req.ImportID = appctx.GetImportID(ctx)
	}

	ctx, service, err := ectoinject.GetContext[Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cfg, err := service.Configuration(ctx, tenantID, req.EntityType, req.Config)
	if err != nil {
		return err
	}
	records := service.RecordsFromRows(cfg, req.Records)

	result, err := service.Reconcile(ctx, dedupe.ReconcileRequest{
		TenantID:   tenantID,
		EntityType: req.EntityType,
		ImportID:   req.ImportID,
		Records:    records,
		Config:     &cfg,
		Persist:    req.Persist,
	})
	if err != nil {
		if dedupe.IsCancelled(err) {
			return httperror.NewHTTPError(http.StatusRequestTimeout, "reconciliation cancelled before every row was checked")
		}
		return err
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": result.Run.ID,
		"rows":   len(result.Rows),
	}).Info("Reconciled import batch over HTTP")

	return c.JSON(http.StatusOK, result)
}

// CompareRequest is the request body for explaining one pairwise score
type CompareRequest struct {
	EntityType string                     `json:"entity_type"`
	Config     *models.MatchConfiguration `json:"config,omitempty"`
	A          map[string]any             `json:"a" validate:"required"`
	B          map[string]any             `json:"b" validate:"required"`
}

// Compare scores two records and returns the per-field breakdown
func Compare(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req CompareRequest
	if err := routes.Bind(c, &req); err != nil {
		return err
	}
	if req.Config == nil && req.EntityType == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "config or entity_type is required")
	}

	ctx, service, err := ectoinject.GetContext[Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cfg, err := service.Configuration(ctx, tenantID, req.EntityType, req.Config)
	if err != nil {
		return err
	}
	records := service.RecordsFromRows(cfg, []map[string]any{req.A, req.B})

	result, err := service.Compare(cfg, records[0], records[1])
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
