package app

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/events"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
)

const foxResponse = `{"predictions":[{"filepath":"fox.png",
  "prediction":"d8c2f0e4-6b1a-4a0e-9a3c-0f1e2d3c4b5a;mammalia;carnivora;canidae;vulpes;vulpes;red fox",
  "prediction_score":0.91,
  "detections":[{"category":"1","label":"animal","conf":0.88,"bbox":[0.1,0.2,0.3,0.4]}]}]}`

// 1x1 transparent PNG
var tinyPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func newClassifierServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/predict", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("image"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, foxResponse)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(t *testing.T, classifierURL string) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Main: conf.MainSettings{Name: "trailcam-test"},
		Classifier: conf.ClassifierSettings{
			URL:        classifierURL,
			Path:       "/api/predict",
			HealthPath: "/health",
			FileField:  "image",
			Timeout:    2 * time.Second,
		},
		Ingest: conf.IngestSettings{
			MaxUploadSize:     conf.DefaultMaxUploadSize,
			AllowedTypes:      conf.DefaultAllowedTypes,
			AllowedExtensions: conf.DefaultAllowedExtensions,
		},
		Output: conf.OutputSettings{
			SQLite: conf.SQLiteSettings{Enabled: true, Path: filepath.Join(t.TempDir(), "trailcam.db")},
		},
		ImageStore: conf.ImageStoreSettings{Backend: conf.ImageBackendDatabase},
		Cache:      conf.CacheSettings{Enabled: true, TTL: time.Minute},
		Metrics:    conf.MetricsSettings{Enabled: true, Path: "/metrics"},
	}
}

func newTestApp(t *testing.T, settings *conf.Settings) *App {
	t.Helper()
	a, err := New(t.Context(), settings, &buildinfo.Context{Version: "test"},
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_IngestEndToEnd(t *testing.T) {
	srv := newClassifierServer(t, true)
	a := newTestApp(t, testSettings(t, srv.URL))

	rec, err := a.Pipeline.Ingest(t.Context(), ingest.Upload{
		Filename:    "fox.png",
		ContentType: "image/png",
		Data:        tinyPNG,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Detected)
	assert.Equal(t, "red fox", *rec.CommonName)
	assert.InDelta(t, 0.91, rec.Score, 1e-9)

	img, err := a.Query.GetImage(t.Context(), rec.ImageID)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(tinyPNG, img.Data))

	pred, err := a.Query.GetPredictionForImage(t.Context(), rec.ImageID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, pred.ID)

	_, err = a.Pipeline.Reclassify(t.Context(), rec.ImageID)
	require.Error(t, err)
	assert.Equal(t, ingest.Conflict, ingest.KindOf(err))
}

func TestDeleteImage_ClearsCachedLookups(t *testing.T) {
	srv := newClassifierServer(t, true)
	a := newTestApp(t, testSettings(t, srv.URL))

	rec, err := a.Pipeline.Ingest(t.Context(), ingest.Upload{Filename: "fox.png", ContentType: "image/png", Data: tinyPNG})
	require.NoError(t, err)

	// warm the cache
	_, err = a.Query.GetPrediction(t.Context(), rec.ID)
	require.NoError(t, err)
	_, err = a.Query.GetPredictionForImage(t.Context(), rec.ImageID)
	require.NoError(t, err)

	require.NoError(t, a.DeleteImage(t.Context(), rec.ImageID))

	_, err = a.Query.GetPrediction(t.Context(), rec.ID)
	require.ErrorIs(t, err, repository.ErrPredictionNotFound)
	_, err = a.Query.GetPredictionForImage(t.Context(), rec.ImageID)
	require.ErrorIs(t, err, repository.ErrPredictionNotFound)
	_, err = a.Query.GetImage(t.Context(), rec.ImageID)
	require.ErrorIs(t, err, repository.ErrImageNotFound)

	require.ErrorIs(t, a.DeleteImage(t.Context(), rec.ImageID), repository.ErrImageNotFound)
}

func TestNew_NoMQTTUsesNop(t *testing.T) {
	srv := newClassifierServer(t, true)
	a := newTestApp(t, testSettings(t, srv.URL))

	assert.IsType(t, events.Nop{}, a.publisher())
	assert.Nil(t, a.bus)
	a.Start(t.Context())
}

func TestNew_MQTTWiresBus(t *testing.T) {
	srv := newClassifierServer(t, true)
	settings := testSettings(t, srv.URL)
	settings.MQTT = conf.MQTTSettings{Enabled: true, Broker: "tcp://127.0.0.1:1", Topic: "trailcam/predictions"}
	settings.Metrics.Enabled = true
	a := newTestApp(t, settings)

	require.NotNil(t, a.bus)
	require.NotNil(t, a.mqtt)
	assert.False(t, a.mqtt.IsConnected())

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "events_bus_total", "bus counters are exported")
}

func TestNew_NoDatabase(t *testing.T) {
	settings := testSettings(t, "http://127.0.0.1:1")
	settings.Output.SQLite.Enabled = false

	_, err := New(t.Context(), settings, &buildinfo.Context{},
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	require.Error(t, err)
}

func TestNew_UnknownImageBackend(t *testing.T) {
	settings := testSettings(t, "http://127.0.0.1:1")
	settings.ImageStore.Backend = "floppy"

	_, err := New(t.Context(), settings, &buildinfo.Context{},
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	require.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newClassifierServer(t, true)
		a := newTestApp(t, testSettings(t, srv.URL))

		checks := a.HealthChecks()
		names := make([]string, 0, len(checks))
		for _, hc := range checks {
			names = append(names, hc.Name)
		}
		assert.Equal(t, []string{"database", "imagestore", "classifier"}, names)
		assert.NoError(t, a.Check(t.Context()))
	})

	t.Run("classifier down", func(t *testing.T) {
		srv := newClassifierServer(t, false)
		a := newTestApp(t, testSettings(t, srv.URL))

		err := a.Check(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classifier")
		assert.NotContains(t, err.Error(), "database")
	})
}
