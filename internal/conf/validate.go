// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Field-level rules from struct tags
	if err := structValidator.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				ve.Errors = append(ve.Errors, formatFieldError(fe))
			}
		} else {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if err := validateWebServerSettings(&settings.WebServer, &settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateImageStoreSettings(&settings.ImageStore); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// formatFieldError turns "Settings.Classifier.URL" + "url" into a config-key style message.
func formatFieldError(fe validator.FieldError) string {
	key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s fails %s (got %v)", key, fe.Tag(), fe.Value())
}

// validateWebServerSettings checks that HTTP timeouts leave room for a full classifier call
func validateWebServerSettings(web *WebServerSettings, classifier *ClassifierSettings) error {
	if !web.Enabled {
		return nil
	}
	if web.WriteTimeout > 0 && web.WriteTimeout <= classifier.Timeout {
		return fmt.Errorf("webserver.writetimeout (%s) must exceed classifier.timeout (%s)", web.WriteTimeout, classifier.Timeout)
	}
	return nil
}

func validateOutputSettings(output *OutputSettings) error {
	switch {
	case output.SQLite.Enabled && output.MySQL.Enabled:
		return fmt.Errorf("only one of output.sqlite and output.mysql can be enabled")
	case !output.SQLite.Enabled && !output.MySQL.Enabled:
		return fmt.Errorf("either output.sqlite or output.mysql must be enabled")
	case output.SQLite.Enabled && output.SQLite.Path == "":
		return fmt.Errorf("output.sqlite.path is required")
	case output.MySQL.Enabled && (output.MySQL.Host == "" || output.MySQL.Database == "" || output.MySQL.Username == ""):
		return fmt.Errorf("output.mysql requires host, database and username")
	}
	return nil
}

func validateImageStoreSettings(store *ImageStoreSettings) error {
	if store.Backend != ImageBackendS3 {
		return nil
	}
	var missing []string
	if store.S3.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if store.S3.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if store.S3.AccessKeyID == "" || store.S3.SecretAccessKey == "" {
		missing = append(missing, "credentials")
	}
	if strings.Contains(store.S3.Endpoint, "://") {
		return fmt.Errorf("imagestore.s3.endpoint must be host:port without scheme, use usessl for https")
	}
	if len(missing) > 0 {
		return fmt.Errorf("imagestore.s3 is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func validateMQTTSettings(mqtt *MQTTSettings) error {
	if !mqtt.Enabled {
		return nil
	}
	u, err := url.Parse(mqtt.Broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("mqtt.broker must be a URL like tcp://host:1883")
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker scheme %q is not supported", u.Scheme)
	}
	if mqtt.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	return nil
}
