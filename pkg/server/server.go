// Package server assembles the echo instance serving the clover API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes"
	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/graph"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/matchconfig"
	"github.com/Ramsey-B/clover/pkg/routes/reconciliation"
)

// Config holds HTTP server settings
type Config struct {
	AppName           string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	AllowOrigins      []string
	AllowMethods      []string
}

// Server owns the echo instance and its http.Server
type Server struct {
	cfg         Config
	echo        *echo.Echo
	http        *http.Server
	containerID string
	logger      ectologger.Logger
}

// New builds the echo instance with middleware and routes. deps are
// registered in a dependency container made active for every request.
// checker may be nil.
func New(cfg Config, deps Dependencies, checker *health.Checker, logger ectologger.Logger) (*Server, error) {
	container, err := NewContainer(cfg.AppName, deps, logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = routes.NewValidator()
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Metrics())
	e.Use(middleware.Context())
	e.Use(middleware.Container(container.GetContainerID()))
	e.Use(middleware.Logger(logger))
	if len(cfg.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: cfg.AllowMethods,
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if checker != nil {
		checker.RegisterRoutes(e)
	}

	api := e.Group("/api/v1", middleware.RequireTenant())
	duplicates.Register(api.Group("/duplicates"))
	matchconfig.Register(api.Group("/match-configurations"))
	reconciliation.Register(api.Group("/reconciliations"))
	graph.Register(api.Group("/graph"))

	return &Server{
		cfg:         cfg,
		echo:        e,
		containerID: container.GetContainerID(),
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           e,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		logger: logger,
	}, nil
}

// ContainerID is the ID of the dependency container serving requests
func (s *Server) ContainerID() string {
	return s.containerID
}

// Echo returns the underlying echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start binds the port and serves in the background
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	s.logger.WithContext(ctx).WithField("addr", s.http.Addr).Info("HTTP server listening")
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
