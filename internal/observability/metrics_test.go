package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/observability/metrics"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Registry())

	// A second instance gets its own registry
	_, err = NewMetrics()
	require.NoError(t, err)
}

func TestClassifierMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Classifier.ObserveClassification("success", 120*time.Millisecond)
	m.Classifier.ObserveClassification("success", 80*time.Millisecond)
	m.Classifier.ObserveClassification("unavailable", time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Classifier.Requests.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Classifier.Requests.WithLabelValues("unavailable")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.Classifier.Duration))
}

func TestIngestMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Ingest.ObserveIngest("ingest", "success", 200*time.Millisecond)
	m.Ingest.ObserveIngest("ingest", "classification_unavailable", time.Second)
	m.Ingest.ObserveIngest("reclassify", "conflict", time.Millisecond)
	m.Ingest.ObserveImageSize(2048)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Ingest.Operations.WithLabelValues("ingest", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Ingest.Operations.WithLabelValues("reclassify", "conflict")), 0)

	var metric dto.Metric
	require.NoError(t, m.Ingest.ImageSize.Write(&metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 2048, metric.GetHistogram().GetSampleSum(), 0)
}

func TestEventMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Events.SetConnected(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.BrokerConnected), 0)

	m.Events.ObservePublish(true, 512, 5*time.Millisecond)
	m.Events.ObservePublish(false, 512, 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.Published.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.Published.WithLabelValues("error")), 0)

	m.Events.SetConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Events.BrokerConnected), 0)
}

func TestEventMetrics_WatchBus(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Events.WatchBus(func() metrics.BusCounts {
		return metrics.BusCounts{EventsReceived: 5, EventsProcessed: 3, EventsDropped: 2}
	})

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "events_bus_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			got[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"received": 5, "processed": 3, "dropped": 2, "consumer_errors": 0}, got)
}

func TestHTTPMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.HTTP.RecordRequest(http.MethodPost, "/api/v2/images", http.StatusCreated, 300, 150*time.Millisecond)
	m.HTTP.RecordRequest(http.MethodGet, "/api/v2/images/:id", http.StatusNotFound, 90, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTP.Requests.WithLabelValues("POST", "/api/v2/images", "201")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTP.Requests.WithLabelValues("GET", "/api/v2/images/:id", "404")), 0)
}

func TestErrorHook(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.InstallErrorHook()
	t.Cleanup(errors.ClearErrorHooks)

	_ = errors.Newf("no such image").
		Component("query").
		Category(errors.CategoryNotFound).
		Build()

	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.Errors.WithLabelValues("query", string(errors.CategoryNotFound))), 0)
}

func TestHandler(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Classifier.ObserveClassification("success", time.Second)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL) //nolint:noctx // test server
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `classifier_requests_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
