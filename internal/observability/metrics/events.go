package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BusCounts is a snapshot of the in-process event bus counters.
type BusCounts struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// EventMetrics covers prediction-created events: the broker connection,
// individual publishes and, once WatchBus is called, the bus that feeds them.
type EventMetrics struct {
	BrokerConnected prometheus.Gauge
	Published       *prometheus.CounterVec
	PayloadSize     prometheus.Histogram
	PublishLatency  prometheus.Histogram

	busDesc *prometheus.Desc
	mu      sync.RWMutex
	bus     func() BusCounts
}

// NewEventMetrics creates and registers the event collectors.
func NewEventMetrics(registry *prometheus.Registry) (*EventMetrics, error) {
	m := &EventMetrics{
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "events_mqtt_connected",
			Help: "1 while the MQTT broker connection is up",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Prediction events handed to the broker by outcome",
		}, []string{"outcome"}),
		PayloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "events_payload_size_bytes",
			Help:    "Size of published prediction events",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "events_publish_latency_seconds",
			Help:    "Time from publish to broker acknowledgement",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
		busDesc: prometheus.NewDesc("events_bus_total",
			"Prediction events seen by the in-process bus by stage",
			[]string{"stage"}, nil),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register event metrics: %w", err)
	}
	return m, nil
}

// WatchBus exports the counters returned by stats on every scrape.
func (m *EventMetrics) WatchBus(stats func() BusCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = stats
}

// SetConnected updates the broker connection gauge.
func (m *EventMetrics) SetConnected(connected bool) {
	if connected {
		m.BrokerConnected.Set(1)
		return
	}
	m.BrokerConnected.Set(0)
}

// ObservePublish records one publish attempt.
func (m *EventMetrics) ObservePublish(success bool, size int, duration time.Duration) {
	if !success {
		m.Published.WithLabelValues(StatusError).Inc()
		return
	}
	m.Published.WithLabelValues(StatusSuccess).Inc()
	m.PayloadSize.Observe(float64(size))
	m.PublishLatency.Observe(duration.Seconds())
}

// Describe implements prometheus.Collector.
func (m *EventMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BrokerConnected.Describe(ch)
	m.Published.Describe(ch)
	m.PayloadSize.Describe(ch)
	m.PublishLatency.Describe(ch)
	ch <- m.busDesc
}

// Collect implements prometheus.Collector.
func (m *EventMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BrokerConnected.Collect(ch)
	m.Published.Collect(ch)
	m.PayloadSize.Collect(ch)
	m.PublishLatency.Collect(ch)

	m.mu.RLock()
	stats := m.bus
	m.mu.RUnlock()
	if stats == nil {
		return
	}

	c := stats()
	for stage, v := range map[string]uint64{
		"received":        c.EventsReceived,
		"processed":       c.EventsProcessed,
		"dropped":         c.EventsDropped,
		"consumer_errors": c.ConsumerErrors,
	} {
		ch <- prometheus.MustNewConstMetric(m.busDesc, prometheus.CounterValue, float64(v), stage)
	}
}
