// Package middleware provides HTTP middleware components for the trailcam server.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/trailcam-go/internal/logger"
)

// NewCorrelationID assigns each request an X-Request-ID, keeping one sent by
// the client, and stores it in the request context so loggers derived with
// WithContext and error bodies carry the same id.
func NewCorrelationID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithCorrelationID(req.Context(), id)))
		},
	})
}

// NewRequestLogger logs one line per request to the access logger.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper creates a request logging middleware with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:          skipper,
		LogStatus:        true,
		LogURI:           true,
		LogMethod:        true,
		LogLatency:       true,
		LogRemoteIP:      true,
		LogError:         true,
		LogRequestID:     true,
		LogContentLength: true,
		LogResponseSize:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
				logger.Int64("response_size", v.ResponseSize),
			}
			if v.ContentLength != "" {
				fields = append(fields, logger.String("content_length", v.ContentLength))
			}
			if v.RequestID != "" {
				fields = append(fields, logger.String("correlation_id", v.RequestID))
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}

			log.Info("request", fields...)
			return nil
		},
	})
}
