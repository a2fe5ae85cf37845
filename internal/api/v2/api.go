// Package api implements the v2 JSON API: image upload, classification retry
// and read-only queries over stored images and predictions.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// Ingestor runs the store-then-classify pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, upload ingest.Upload) (*entities.PredictionRecord, error)
	Reclassify(ctx context.Context, imageID uint) (*entities.PredictionRecord, error)
}

// Querier serves read-only lookups.
type Querier interface {
	ListImages(ctx context.Context) ([]entities.ImageMeta, error)
	GetImage(ctx context.Context, id uint) (*entities.ImageRecord, error)
	ListPredictions(ctx context.Context) ([]entities.PredictionRecord, error)
	GetPrediction(ctx context.Context, id uint) (*entities.PredictionRecord, error)
	GetPredictionForImage(ctx context.Context, imageID uint) (*entities.PredictionRecord, error)
}

// HealthCheck tests one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Controller manages the API routes and handlers.
type Controller struct {
	Group    *echo.Group
	ingestor Ingestor
	querier  Querier
	log      logger.Logger

	healthChecks   []HealthCheck
	healthTimeout  time.Duration
	uploadLimiters []echo.MiddlewareFunc
	build          *buildinfo.Context
	startTime      time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithHealthChecks adds dependency checks to /health.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(c *Controller) {
		c.healthChecks = append(c.healthChecks, checks...)
	}
}

// WithUploadMiddleware wraps the write routes, e.g. with a rate limiter.
func WithUploadMiddleware(mw ...echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.uploadLimiters = append(c.uploadLimiters, mw...)
	}
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(c *Controller) {
		c.build = b
	}
}

// New creates the controller and registers its routes on group.
func New(group *echo.Group, ingestor Ingestor, querier Querier, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		Group:         group,
		ingestor:      ingestor,
		querier:       querier,
		log:           log,
		healthTimeout: 5 * time.Second,
		startTime:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.initImageRoutes()
	c.initPredictionRoutes()
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	Kind          string `json:"kind"`
	ImageID       *uint  `json:"image_id,omitempty"`
	CorrelationID string `json:"correlation_id"` // Matches the X-Request-ID response header
}

// NewErrorResponse creates a new API error response. An empty correlationID
// gets a fresh one.
func NewErrorResponse(err error, message string, code int, kind ingest.Kind, correlationID string) *ErrorResponse {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	resp := &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		Kind:          kind.String(),
		CorrelationID: correlationID,
	}
	if id, ok := ingest.ImageIDOf(err); ok {
		resp.ImageID = &id
	}
	return resp
}

// HandleError logs err with a correlation id and writes the error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int, kind ingest.Kind) error {
	resp := NewErrorResponse(err, message, code, kind, logger.CorrelationIDFromContext(ctx.Request().Context()))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Error(err),
		logger.Int("code", code),
		logger.String("kind", resp.Kind),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if resp.ImageID != nil {
		fields = append(fields, logger.Uint64("image_id", uint64(*resp.ImageID)))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// parseID reads a positive integer path parameter.
func parseID(ctx echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
