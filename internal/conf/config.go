// Package conf loads trailcam settings from config.yaml, environment variables and defaults.
package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// Settings contains all configuration options for the service.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main       MainSettings         `yaml:"main"`
	WebServer  WebServerSettings    `yaml:"webserver"`
	Classifier ClassifierSettings   `yaml:"classifier"`
	Ingest     IngestSettings       `yaml:"ingest"`
	Output     OutputSettings       `yaml:"output"`
	ImageStore ImageStoreSettings   `yaml:"imagestore"`
	MQTT       MQTTSettings         `yaml:"mqtt"`
	Cache      CacheSettings        `yaml:"cache"`
	Metrics    MetricsSettings      `yaml:"metrics"`
	Sentry     SentrySettings       `yaml:"sentry"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

// MainSettings identifies this instance.
type MainSettings struct {
	Name string `yaml:"name" validate:"required"` // instance name, used as MQTT client id and Sentry server name
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port" validate:"required,numeric"`
	BodyLimit       string        `yaml:"bodylimit"`       // echo BodyLimit syntax, e.g. "110M"
	ReadTimeout     time.Duration `yaml:"readtimeout"`     // whole request including upload body
	WriteTimeout    time.Duration `yaml:"writetimeout"`    // must exceed classifier timeout
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"` // graceful shutdown deadline
	CORSOrigins     []string      `yaml:"corsorigins"`
	UploadRateLimit float64       `yaml:"uploadratelimit" validate:"gte=0"` // uploads per second per client, 0 disables
	UploadRateBurst int           `yaml:"uploadrateburst" validate:"gte=0"`
}

// ClassifierSettings points at the SpeciesNet HTTP wrapper.
type ClassifierSettings struct {
	URL        string        `yaml:"url" validate:"required,url"`
	Path       string        `yaml:"path" validate:"required,startswith=/"` // prediction endpoint path
	HealthPath string        `yaml:"healthpath"`
	FileField  string        `yaml:"filefield" validate:"required"` // multipart field carrying the image
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent  string        `yaml:"useragent"`
}

// IngestSettings bounds what the upload endpoint accepts.
type IngestSettings struct {
	MaxUploadSize     int64    `yaml:"maxuploadsize" validate:"gt=0"`
	AllowedTypes      []string `yaml:"allowedtypes" validate:"min=1,dive,required"`
	AllowedExtensions []string `yaml:"allowedextensions" validate:"min=1,dive,required"`
}

// OutputSettings selects the relational store.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// SQLiteSettings for the default embedded store.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings for a shared MySQL/MariaDB server.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// Image byte storage backends.
const (
	ImageBackendDatabase = "database"
	ImageBackendS3       = "s3"
)

// ImageStoreSettings selects where raw image bytes live.
type ImageStoreSettings struct {
	Backend string     `yaml:"backend" validate:"oneof=database s3"`
	S3      S3Settings `yaml:"s3"`
}

// S3Settings configures an S3 compatible object store (MinIO, AWS, Garage).
type S3Settings struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accesskeyid"`
	SecretAccessKey string `yaml:"secretaccesskey"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	UseSSL          bool   `yaml:"usessl"`
}

// MQTTSettings configures prediction event publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos" validate:"lte=2"`
	Retain   bool   `yaml:"retain"`
}

// CacheSettings configures by-id lookup caching in the query service.
type CacheSettings struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SentrySettings configures opt-in error reporting.
type SentrySettings struct {
	Enabled     bool    `yaml:"enabled"`
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"samplerate" validate:"gte=0,lte=1"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or config.yaml from the default paths when empty),
// applies environment overrides and defaults, and validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, env bindings and reads the config file if one exists.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) && configFile == "" {
			// Running on defaults and environment only
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "trailcam"))
	}
	return append(paths, "/etc/trailcam")
}

// ConfigFileUsed reports the config file viper read, empty when running on defaults.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetSettings returns the most recently loaded settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

const redacted = "[REDACTED]"

// WriteYAML writes the settings as YAML with credentials masked.
func WriteYAML(w io.Writer, settings *Settings) error {
	masked := *settings
	if masked.Output.MySQL.Password != "" {
		masked.Output.MySQL.Password = redacted
	}
	if masked.ImageStore.S3.SecretAccessKey != "" {
		masked.ImageStore.S3.SecretAccessKey = redacted
	}
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = redacted
	}
	if masked.Sentry.DSN != "" {
		masked.Sentry.DSN = redacted
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return enc.Close()
}
