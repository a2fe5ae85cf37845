package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for API requests.
type HTTPMetrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the HTTP collectors.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}), // path is the route template, e.g. /api/v2/images/:id
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		}, []string{"method", "path"}),
		ResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor4, BucketCount10),
		}, []string{"method", "path"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records one completed request.
func (m *HTTPMetrics) RecordRequest(method, path string, status int, size int64, duration time.Duration) {
	m.Requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(size))
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.Duration.Collect(ch)
	m.ResponseSize.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.Duration.Describe(ch)
	m.ResponseSize.Describe(ch)
}
