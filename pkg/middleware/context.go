package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
)

// HeaderImportID optionally ties a request to an import batch
const HeaderImportID = "X-Import-ID"

// Context copies request metadata into the request context
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			ctx = appctx.SetMethod(ctx, req.Method)
			ctx = appctx.SetRoute(ctx, req.URL.Path)
			ctx = appctx.SetRemoteIP(ctx, c.RealIP())
			ctx = appctx.SetTenantID(ctx, req.Header.Get(appctx.TenantHeader))
			if importID := req.Header.Get(HeaderImportID); importID != "" {
				ctx = appctx.SetImportID(ctx, importID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// RequireTenant rejects requests without a tenant header. It must run after Context.
func RequireTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if appctx.GetTenantID(c.Request().Context()) == "" {
				return httperror.NewHTTPErrorf(http.StatusBadRequest, "%s header is required", appctx.TenantHeader)
			}
			return next(c)
		}
	}
}
