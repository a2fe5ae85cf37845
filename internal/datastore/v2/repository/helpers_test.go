package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// setupTestDB opens a migrated SQLite database in a temp dir with foreign keys enabled.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities.All()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func createImage(t *testing.T, repo ImageRepository, name string) *entities.ImageRecord {
	t.Helper()
	rec := &entities.ImageRecord{
		Name:        name,
		ContentType: "image/jpeg",
		Data:        []byte("jpeg-bytes-" + name),
		Size:        int64(len("jpeg-bytes-" + name)),
	}
	require.NoError(t, repo.Create(t.Context(), rec))
	require.NotZero(t, rec.ID)
	return rec
}
