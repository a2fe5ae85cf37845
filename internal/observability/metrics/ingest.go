package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics tracks pipeline runs and stored image sizes.
type IngestMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	ImageSize  prometheus.Histogram
}

// NewIngestMetrics creates and registers the pipeline collectors.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_operations_total",
			Help: "Total number of pipeline runs by operation and outcome",
		}, []string{"operation", "outcome"}), // operation: ingest, reclassify; outcome: success or error kind
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_operation_duration_seconds",
			Help:    "End to end duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"operation"}),
		ImageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_image_size_bytes",
			Help:    "Size of accepted images",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10), // 1KB to ~256MB
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

// ObserveIngest records one pipeline run.
func (m *IngestMetrics) ObserveIngest(operation, outcome string, duration time.Duration) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveImageSize records the size of an accepted upload.
func (m *IngestMetrics) ObserveImageSize(size int64) {
	m.ImageSize.Observe(float64(size))
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.Duration.Collect(ch)
	ch <- m.ImageSize
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.Duration.Describe(ch)
	ch <- m.ImageSize.Desc()
}
