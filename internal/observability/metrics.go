// Package observability assembles the Prometheus registry and its collectors.
// Sentry error reporting lives in the telemetry package.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the service.
type Metrics struct {
	registry   *prometheus.Registry
	Classifier *metrics.ClassifierMetrics
	Ingest     *metrics.IngestMetrics
	Events     *metrics.EventMetrics
	HTTP       *metrics.HTTPMetrics
	Errors     *metrics.ErrorMetrics
}

// NewMetrics creates a registry with process and Go runtime collectors plus
// one collector set per component.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	classifierMetrics, err := metrics.NewClassifierMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier metrics: %w", err)
	}

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	eventMetrics, err := metrics.NewEventMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	errorMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Classifier: classifierMetrics,
		Ingest:     ingestMetrics,
		Events:     eventMetrics,
		HTTP:       httpMetrics,
		Errors:     errorMetrics,
	}, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstallErrorHook counts every built error by component and category.
func (m *Metrics) InstallErrorHook() {
	errors.AddErrorHook(m.Errors.Hook())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
