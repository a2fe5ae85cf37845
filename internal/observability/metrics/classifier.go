// Package metrics provides the Prometheus collectors for trailcam components.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics tracks calls to the SpeciesNet service.
type ClassifierMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewClassifierMetrics creates and registers the classifier collectors.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_requests_total",
			Help: "Total number of classifier calls by outcome",
		}, []string{"outcome"}), // success, no_detection, unavailable, failure
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classifier_request_duration_seconds",
			Help:    "Duration of classifier calls",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		}, []string{"outcome"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// ObserveClassification records one classifier call.
func (m *ClassifierMetrics) ObserveClassification(outcome string, duration time.Duration) {
	m.Requests.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.Duration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.Duration.Describe(ch)
}
