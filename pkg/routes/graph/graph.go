package graph

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
	graphpkg "github.com/Ramsey-B/clover/pkg/graph"
)

// Neighbors lists the possible-duplicate edges of a record
type Neighbors interface {
	DuplicatesOf(ctx context.Context, tenantID, entityType, id string) ([]graphpkg.Neighbor, error)
}

// Register registers the graph routes
func Register(g *echo.Group) {
	g.GET("/duplicates/:entity_type/:id", DuplicatesOf)
}

// DuplicatesOf lists every record linked to id as a possible duplicate
// @Summary List possible duplicates of a record
// @Tags Graph
// @Produce json
// @Success 200 {array} graphpkg.Neighbor
// @Failure 503 {object} httperror.HTTPError
// @Router /api/v1/graph/duplicates/{entity_type}/{id} [get]
func DuplicatesOf(c echo.Context) error {
	ctx := c.Request().Context()

	// not registered when the graph database is disabled
	ctx, graph, err := ectoinject.GetContext[Neighbors](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "duplicate graph unavailable")
	}

	neighbors, err := graph.DuplicatesOf(ctx, appctx.GetTenantID(ctx), c.Param("entity_type"), c.Param("id"))
	if err != nil {
		return err
	}
	if neighbors == nil {
		neighbors = []graphpkg.Neighbor{}
	}
	return c.JSON(http.StatusOK, neighbors)
}
