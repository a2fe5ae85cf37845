// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/trailcam-go/internal/logger"
)

// Upload limits follow the SpeciesNet wrapper: 100 MB and common still-image formats.
const (
	DefaultMaxUploadSize     = 100 * 1024 * 1024
	DefaultClassifierTimeout = 60 * time.Second
)

// DefaultAllowedTypes lists the MIME types accepted for upload.
var DefaultAllowedTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

// DefaultAllowedExtensions lists the file extensions accepted for upload.
var DefaultAllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "webp"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "trailcam")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.bodylimit", "110M")
	viper.SetDefault("webserver.readtimeout", 2*time.Minute)
	viper.SetDefault("webserver.writetimeout", 3*time.Minute)
	viper.SetDefault("webserver.shutdowntimeout", 30*time.Second)
	viper.SetDefault("webserver.corsorigins", []string{"*"})
	viper.SetDefault("webserver.uploadratelimit", 0)
	viper.SetDefault("webserver.uploadrateburst", 5)

	viper.SetDefault("classifier.url", "http://localhost:5000")
	viper.SetDefault("classifier.path", "/api/predict")
	viper.SetDefault("classifier.healthpath", "/health")
	viper.SetDefault("classifier.filefield", "image")
	viper.SetDefault("classifier.timeout", DefaultClassifierTimeout)
	viper.SetDefault("classifier.useragent", "")

	viper.SetDefault("ingest.maxuploadsize", DefaultMaxUploadSize)
	viper.SetDefault("ingest.allowedtypes", DefaultAllowedTypes)
	viper.SetDefault("ingest.allowedextensions", DefaultAllowedExtensions)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "trailcam.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "trailcam")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "trailcam")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("imagestore.backend", ImageBackendDatabase)
	viper.SetDefault("imagestore.s3.endpoint", "localhost:9000")
	viper.SetDefault("imagestore.s3.bucket", "trailcam-images")
	viper.SetDefault("imagestore.s3.region", "")
	viper.SetDefault("imagestore.s3.prefix", "images/")
	viper.SetDefault("imagestore.s3.usessl", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "trailcam/predictions")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", 5*time.Minute)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.samplerate", 1.0)

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.console.json", false)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}
