package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// SQLiteManager handles the embedded SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	log    logger.Logger
}

// NewSQLiteManager opens the SQLite database at dbPath, creating its
// directory when missing.
func NewSQLiteManager(dbPath string, log logger.Logger) (*SQLiteManager, error) {
	if dbPath == "" {
		return nil, validationError("sqlite path must not be empty", "output.sqlite.path", dbPath)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_dir").
				Context("path", dir).
				Build()
		}
	}

	// Recommended SQLite pragmas; foreign keys are off by default in SQLite
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, dbError(err, "open_sqlite", errors.PriorityCritical, "path", dbPath)
	}

	return &SQLiteManager{db: db, dbPath: dbPath, log: log}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize(ctx context.Context) error {
	return migrate(ctx, m.db, m.dbPath)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Ping checks the connection.
func (m *SQLiteManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db)
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	if err := closeDB(m.db); err != nil {
		m.log.Error("failed to close SQLite database", logger.Error(err))
		return err
	}
	m.log.Debug("SQLite database closed", logger.String("path", m.dbPath))
	return nil
}

// IsMySQL returns false for SQLite.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
