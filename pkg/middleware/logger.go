package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
)

// Logger writes one structured line per request
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			fields := appctx.Fields(req.Context())
			fields["method"] = req.Method
			fields["uri"] = req.RequestURI
			fields["route"] = c.Path()
			fields["status"] = res.Status
			fields["remote_ip"] = c.RealIP()
			fields["user_agent"] = req.UserAgent()
			fields["response_time"] = time.Since(start)
			fields["response_size"] = res.Size

			logger.WithContext(req.Context()).WithFields(fields).Info("Request")

			return nil
		}
	}
}
