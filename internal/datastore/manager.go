// Package datastore opens and migrates the relational store holding image
// and prediction records. SQLite is the default; MySQL is selected with
// output.mysql.enabled.
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// slowQueryThreshold is where the GORM adapter starts logging at Warn.
const slowQueryThreshold = 500 * time.Millisecond

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize(ctx context.Context) error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/database for MySQL).
	Path() string
	// Ping checks that the database answers.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Open connects to the store selected in settings and runs the schema migration.
func Open(ctx context.Context, settings *conf.Settings, log logger.Logger) (Manager, error) {
	var (
		m   Manager
		err error
	)
	switch {
	case settings.Output.MySQL.Enabled:
		m, err = NewMySQLManager(&MySQLConfig{
			Host:     settings.Output.MySQL.Host,
			Port:     settings.Output.MySQL.Port,
			Username: settings.Output.MySQL.Username,
			Password: settings.Output.MySQL.Password,
			Database: settings.Output.MySQL.Database,
		}, log)
	case settings.Output.SQLite.Enabled:
		m, err = NewSQLiteManager(settings.Output.SQLite.Path, log)
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	log.Info("database ready",
		logger.String("path", m.Path()),
		logger.Bool("mysql", m.IsMySQL()))
	return m, nil
}

// gormConfig returns the shared GORM configuration. TranslateError lets the
// repositories match unique and foreign key violations.
func gormConfig(log logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowQueryThreshold),
		TranslateError: true,
	}
}

// migrate runs AutoMigrate for all entities.
func migrate(ctx context.Context, db *gorm.DB, location string) error {
	start := time.Now()
	if err := db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical,
			"location", location,
			"duration", time.Since(start).String())
	}
	return nil
}

// ping checks database connectivity through the underlying sql.DB.
func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", errors.PriorityHigh)
	}
	return nil
}

// closeDB closes the underlying sql.DB.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return errors.NewStd("database connection is not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", "")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "")
	}
	return nil
}
