package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vburojevic/nginv/internal/metrics"
	"github.com/vburojevic/nginv/internal/output"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the live statistics over HTTP:
//
//	GET /api/v1/snapshot  current snapshot, the interval is not rotated
//	GET /api/v1/tailers   per-file tailing state
//	GET /metrics          Prometheus exposition
//	GET /healthz          liveness
type Server struct {
	echo   *echo.Echo
	source metrics.Source
	logger *zap.Logger
}

// New builds the router. Metrics for both the statistics and the HTTP
// handlers are registered on reg.
func New(source metrics.Source, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, source: source, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("http request",
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "nginv",
		Subsystem:  "http",
		Registerer: reg,
	}))

	e.GET("/healthz", s.healthz)
	e.GET("/api/v1/snapshot", s.snapshot)
	e.GET("/api/v1/tailers", s.tailers)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))

	return s
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) snapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, output.NewSnapshotOutput(s.source.Snapshot()))
}

func (s *Server) tailers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.source.States())
}
