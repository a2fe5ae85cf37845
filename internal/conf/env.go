// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "TRAILCAM_DEBUG", validateEnvBool},
		{"main.name", "TRAILCAM_NAME", nil},

		{"webserver.port", "TRAILCAM_PORT", validateEnvPort},

		// Classifier service
		{"classifier.url", "TRAILCAM_CLASSIFIER_URL", validateEnvURL},
		{"classifier.timeout", "TRAILCAM_CLASSIFIER_TIMEOUT", validateEnvDuration},

		// Storage
		{"output.sqlite.path", "TRAILCAM_SQLITE_PATH", nil},
		{"output.mysql.enabled", "TRAILCAM_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "TRAILCAM_MYSQL_HOST", nil},
		{"output.mysql.port", "TRAILCAM_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "TRAILCAM_MYSQL_USERNAME", nil},
		{"output.mysql.password", "TRAILCAM_MYSQL_PASSWORD", nil},
		{"output.mysql.database", "TRAILCAM_MYSQL_DATABASE", nil},
		{"imagestore.backend", "TRAILCAM_IMAGESTORE_BACKEND", validateEnvBackend},
		{"imagestore.s3.endpoint", "TRAILCAM_S3_ENDPOINT", nil},
		{"imagestore.s3.accesskeyid", "TRAILCAM_S3_ACCESS_KEY_ID", nil},
		{"imagestore.s3.secretaccesskey", "TRAILCAM_S3_SECRET_ACCESS_KEY", nil},
		{"imagestore.s3.bucket", "TRAILCAM_S3_BUCKET", nil},

		// Integrations
		{"mqtt.broker", "TRAILCAM_MQTT_BROKER", validateEnvURL},
		{"mqtt.password", "TRAILCAM_MQTT_PASSWORD", nil},
		{"sentry.dsn", "TRAILCAM_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every environment variable and validates the ones that are set.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL with scheme and host")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("must be a positive duration such as 30s")
	}
	return nil
}

func validateEnvBackend(value string) error {
	switch value {
	case ImageBackendDatabase, ImageBackendS3:
		return nil
	}
	return fmt.Errorf("must be %q or %q", ImageBackendDatabase, ImageBackendS3)
}
