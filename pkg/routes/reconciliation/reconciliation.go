package reconciliation

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Store reads reconciliation runs
type Store interface {
	GetRun(ctx context.Context, tenantID, id string) (*models.ReconciliationRun, error)
	ListRuns(ctx context.Context, tenantID string, entityType *string, page, pageSize int) ([]models.ReconciliationRun, int, error)
	ListRows(ctx context.Context, tenantID, runID string) ([]models.RowResult, error)
}

// Register registers reconciliation routes
func Register(g *echo.Group) {
	g.GET("", ListRuns)
	g.GET("/:id", GetRun)
	g.GET("/:id/rows", ListRows)
}

// ListRunsResponse is a page of runs
type ListRunsResponse struct {
	Items    []models.ReconciliationRun `json:"items"`
	Total    int                        `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
}

// ListRuns lists runs, newest first, optionally for one entity type
func ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := intParam(c, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := intParam(c, "page_size", defaultPageSize)
	if err != nil {
		return err
	}
	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "page must be >= 1 and page_size between 1 and %d", maxPageSize)
	}

	var entityType *string
	if et := c.QueryParam("entity_type"); et != "" {
		entityType = &et
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	runs, total, err := store.ListRuns(ctx, appctx.GetTenantID(ctx), entityType, page, pageSize)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []models.ReconciliationRun{}
	}

	return c.JSON(http.StatusOK, ListRunsResponse{
		Items:    runs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetRun gets a run by ID
func GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	run, err := store.GetRun(ctx, appctx.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// ListRows lists the row outcomes of a run in row order
func ListRows(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)
	runID := c.Param("id")

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// 404 for runs of other tenants
	if _, err := store.GetRun(ctx, tenantID, runID); err != nil {
		return err
	}

	rows, err := store.ListRows(ctx, tenantID, runID)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []models.RowResult{}
	}
	return c.JSON(http.StatusOK, rows)
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be an integer", name)
	}
	return v, nil
}
