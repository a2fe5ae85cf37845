package datastore

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestOpen_SQLite(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "data", "trailcam.db")

	m, err := Open(t.Context(), settings, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.False(t, m.IsMySQL())
	assert.Equal(t, settings.Output.SQLite.Path, m.Path())
	require.NoError(t, m.Ping(t.Context()))

	assert.True(t, m.DB().Migrator().HasTable(&entities.ImageRecord{}))
	assert.True(t, m.DB().Migrator().HasTable(&entities.PredictionRecord{}))
	assert.True(t, m.DB().Migrator().HasIndex(&entities.PredictionRecord{}, "idx_predictions_image"))
}

func TestOpen_SQLiteEnforcesForeignKeys(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "fk.db")

	m, err := Open(t.Context(), settings, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	err = repository.NewPredictionRepository(m.DB()).Create(t.Context(), &entities.PredictionRecord{ImageID: 77, Detected: true})
	require.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestOpen_NoBackend(t *testing.T) {
	_, err := Open(t.Context(), &conf.Settings{}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewSQLiteManager_EmptyPath(t *testing.T) {
	_, err := NewSQLiteManager("", testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSQLiteManager_CloseTwice(t *testing.T) {
	m, err := NewSQLiteManager(filepath.Join(t.TempDir(), "close.db"), testLogger())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	// database/sql tolerates a second Close
	assert.NoError(t, m.Close())
}

func TestMySQLConfig_DSN(t *testing.T) {
	cfg := &MySQLConfig{
		Host:     "db.local",
		Port:     "3306",
		Username: "trailcam",
		Password: "p@ss/word",
		Database: "trailcam",
	}
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "trailcam:p@ss/word@tcp(db.local:3306)/trailcam?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestDBError(t *testing.T) {
	err := dbError(errors.NewStd("database disk image is malformed"), "query", "", "table", "images")

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryDatabase, ee.Category)
	assert.Equal(t, errors.PriorityCritical, ee.GetPriority())
	assert.Equal(t, "images", ee.GetContext()["table"])
	assert.Equal(t, "query", ee.GetContext()["operation"])
}
