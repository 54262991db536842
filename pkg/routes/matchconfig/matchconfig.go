package matchconfig

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes"
)

// Store persists match configurations
type Store interface {
	Get(ctx context.Context, tenantID, entityType string) (*models.StoredMatchConfiguration, error)
	List(ctx context.Context, tenantID string) ([]models.StoredMatchConfiguration, error)
	Upsert(ctx context.Context, tenantID, entityType string, cfg models.MatchConfiguration) (*models.StoredMatchConfiguration, error)
	Delete(ctx context.Context, tenantID, entityType string) error
}

// Register registers match configuration routes
func Register(g *echo.Group) {
	g.GET("", ListMatchConfigurations)
	g.GET("/:entity_type", GetMatchConfiguration)
	g.PUT("/:entity_type", PutMatchConfiguration)
	g.DELETE("/:entity_type", DeleteMatchConfiguration)
}

// ListMatchConfigurations lists the tenant's match configurations
func ListMatchConfigurations(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	configs, err := store.List(ctx, appctx.GetTenantID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, configs)
}

// GetMatchConfiguration gets the match configuration of an entity type
func GetMatchConfiguration(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cfg, err := store.Get(ctx, appctx.GetTenantID(ctx), c.Param("entity_type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

// PutMatchConfiguration creates or replaces the match configuration of an entity type
func PutMatchConfiguration(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)
	entityType := c.Param("entity_type")

	var req models.PutMatchConfigurationRequest
	if err := routes.Bind(c, &req); err != nil {
		return err
	}

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stored, err := store.Upsert(ctx, tenantID, entityType, req.Configuration())
	if err != nil {
		return err
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"version":     stored.Version,
	}).Info("Saved match configuration")

	return c.JSON(http.StatusOK, stored)
}

// DeleteMatchConfiguration deletes the match configuration of an entity type
func DeleteMatchConfiguration(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, store, err := ectoinject.GetContext[Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := store.Delete(ctx, appctx.GetTenantID(ctx), c.Param("entity_type")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
