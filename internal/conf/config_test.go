package conf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", settings.Classifier.URL)
	assert.Equal(t, "/api/predict", settings.Classifier.Path)
	assert.Equal(t, "image", settings.Classifier.FileField)
	assert.Equal(t, DefaultClassifierTimeout, settings.Classifier.Timeout)
	assert.Equal(t, int64(DefaultMaxUploadSize), settings.Ingest.MaxUploadSize)
	assert.ElementsMatch(t, DefaultAllowedTypes, settings.Ingest.AllowedTypes)
	assert.True(t, settings.Output.SQLite.Enabled)
	assert.Equal(t, ImageBackendDatabase, settings.ImageStore.Backend)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, `
main:
  name: ridge-cam
classifier:
  url: http://speciesnet:5000
  timeout: 90s
webserver:
  writetimeout: 2m
logging:
  default_level: debug
  console:
    enabled: true
    level: warn
`)
	t.Setenv("TRAILCAM_PORT", "9090")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ridge-cam", settings.Main.Name)
	assert.Equal(t, "http://speciesnet:5000", settings.Classifier.URL)
	assert.Equal(t, 90*time.Second, settings.Classifier.Timeout)
	assert.Equal(t, "9090", settings.WebServer.Port)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.Equal(t, "warn", settings.Logging.Console.Level)
	assert.Equal(t, path, ConfigFileUsed())
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("TRAILCAM_CLASSIFIER_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRAILCAM_CLASSIFIER_TIMEOUT")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWriteYAMLMasksSecrets(t *testing.T) {
	settings := validSettings()
	settings.Output.MySQL.Password = "hunter2"
	settings.ImageStore.S3.SecretAccessKey = "minio-secret"
	settings.Sentry.DSN = "https://key@sentry.example/1"

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, settings))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "minio-secret")
	assert.NotContains(t, out, "sentry.example")
	assert.Contains(t, out, "timeout: 1m0s")
	assert.Equal(t, "hunter2", settings.Output.MySQL.Password, "caller's settings untouched")
}
