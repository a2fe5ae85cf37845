package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// ErrorMetrics counts built errors by component and category.
type ErrorMetrics struct {
	Errors *prometheus.CounterVec
}

// NewErrorMetrics creates and registers the error counter.
func NewErrorMetrics(registry *prometheus.Registry) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors by component and category",
		}, []string{"component", "category"}),
	}
	if err := registry.Register(m.Errors); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

// Hook returns an errors.ErrorHook that feeds the counter.
func (m *ErrorMetrics) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.Errors.WithLabelValues(ee.GetComponent(), ee.GetCategory()).Inc()
	}
}
