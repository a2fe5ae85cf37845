package datastore

import (
	"context"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN builds the driver connection string.
func (c *MySQLConfig) DSN() string {
	cfg := mysqldriver.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// MySQLManager handles a MySQL or MariaDB database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
	log      logger.Logger
}

// NewMySQLManager opens the MySQL database described by cfg.
func NewMySQLManager(cfg *MySQLConfig, log logger.Logger) (*MySQLManager, error) {
	location := net.JoinHostPort(cfg.Host, cfg.Port) + "/" + cfg.Database

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig(log))
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("location", location),
			logger.Error(err))
		return nil, dbError(err, "open_mysql", errors.PriorityCritical, "location", location)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "get_sql_db", "")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &MySQLManager{db: db, location: location, log: log}, nil
}

// Initialize creates the schema.
func (m *MySQLManager) Initialize(ctx context.Context) error {
	return migrate(ctx, m.db, m.location)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Ping checks the connection.
func (m *MySQLManager) Ping(ctx context.Context) error {
	return ping(ctx, m.db)
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	if err := closeDB(m.db); err != nil {
		m.log.Error("failed to close MySQL database", logger.Error(err))
		return err
	}
	return nil
}

// IsMySQL returns true.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
