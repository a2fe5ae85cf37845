package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echolog "github.com/labstack/gommon/log"

	mw "github.com/tphakala/trailcam-go/internal/api/middleware"
	v2 "github.com/tphakala/trailcam-go/internal/api/v2"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/observability"
)

// Server is the HTTP server for trailcam.
// It manages the Echo instance, middleware and the v2 routes.
type Server struct {
	echo      *echo.Echo
	config    *Config
	log       logger.Logger
	accessLog logger.Logger

	metrics      *observability.Metrics
	healthChecks []v2.HealthCheck
	build        *buildinfo.Context

	apiController *v2.Controller
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics enables request metrics and the metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealthChecks adds dependency checks to /api/v2/health.
func WithHealthChecks(checks ...v2.HealthCheck) ServerOption {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) {
		s.build = b
	}
}

// WithAccessLogger routes per-request log lines to log.
func WithAccessLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.accessLog = log
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, ingestor v2.Ingestor, querier v2.Querier, log logger.Logger, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config: config,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.accessLog == nil {
		s.accessLog = log
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.errorHandler
	s.echo.Logger = logger.NewEchoAdapter(log.Module("echo"))

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes(ingestor, querier)

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("metrics", s.metrics != nil && config.MetricsEnabled),
		logger.Float64("upload_rate_limit", config.Security.UploadRate))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{LogLevel: echolog.ERROR}))
	s.echo.Use(mw.NewCorrelationID())
	s.echo.Use(mw.NewRequestLogger(s.accessLog))
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}
	s.echo.Use(mw.NewCORS(s.config.Security))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(ingestor v2.Ingestor, querier v2.Querier) {
	opts := []v2.Option{
		v2.WithHealthChecks(s.healthChecks...),
		v2.WithBuildInfo(s.build),
	}
	if limiter := mw.NewUploadRateLimiter(s.config.Security); limiter != nil {
		opts = append(opts, v2.WithUploadMiddleware(limiter))
	}
	s.apiController = v2.New(s.echo.Group(APIPrefix), ingestor, querier, s.log, opts...)

	if s.metrics != nil && s.config.MetricsEnabled {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}
}

// errorHandler renders echo errors (unknown routes, oversized bodies, panics)
// in the same JSON shape as handler errors.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	kind := ingest.Internal
	switch {
	case code == http.StatusNotFound:
		kind = ingest.NotFound
	case code < http.StatusInternalServerError:
		kind = ingest.InvalidRequest
	}

	resp := v2.NewErrorResponse(err, message, code, kind, logger.CorrelationIDFromContext(c.Request().Context()))
	if code >= http.StatusInternalServerError {
		s.log.Error("unhandled server error",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, resp)
	}
	if werr != nil {
		s.log.Debug("failed to write error response", logger.Error(werr))
	}
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address())
	if err != nil {
		return errors.New(fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)).
			Component("api").
			Category(errors.CategoryNetwork).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down HTTP server", logger.Duration("timeout", s.config.ShutdownTimeout))
	start := time.Now()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("HTTP server shutdown complete", logger.Duration("elapsed", time.Since(start)))
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIController returns the v2 controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}
