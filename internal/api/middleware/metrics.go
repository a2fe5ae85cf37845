package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/observability/metrics"
)

// NewMetrics records request counts and latency labelled by route template,
// so /images/1 and /images/2 share one series.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordRequest(c.Request().Method, path, status, c.Response().Size, time.Since(start))
			return err
		}
	}
}
