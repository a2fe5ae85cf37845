// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := generateErrorTitle(ee)
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}

		for key, value := range ee.GetContext() {
			if strValue, ok := value.(string); ok {
				value = scrubMessageForPrivacy(strValue)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle builds "Component Category Operation" for Sentry grouping
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string

	if component := ee.GetComponent(); component != "" && component != ComponentUnknown {
		parts = append(parts, titleCase(component))
	}
	if categoryTitle := formatCategoryForTitle(ee.Category); categoryTitle != "" {
		parts = append(parts, categoryTitle)
	}
	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		parts = append(parts, formatOperationForTitle(operation))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryNetwork:
		return "Network Error"
	case CategoryTimeout:
		return "Timeout"
	case CategoryDatabase:
		return "Database Error"
	case CategoryImageStorage:
		return "Image Storage Error"
	case CategoryClassification:
		return "Classification Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryMQTTConnection, CategoryMQTTPublish:
		return "MQTT Error"
	default:
		return string(category)
	}
}

func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns appropriate Sentry level based on category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryMQTTConnection, CategoryMQTTPublish:
		return sentry.LevelWarning // Often transient
	case CategoryValidation, CategoryNotFound, CategoryConflict:
		return sentry.LevelInfo // Caller mistakes
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu              sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	globalTelemetryReporter = reporter
	reporterMu.Unlock()

	hooksMu.Lock()
	defer hooksMu.Unlock()
	updateActiveReporting()
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRegex = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	apiKeyRegexes   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(access|secret)[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// scrubMessageForPrivacy strips query strings and credentials from messages
func scrubMessageForPrivacy(message string) string {
	return basicURLScrub(message)
}

func basicURLScrub(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRegex.ReplaceAllString(scrubbed, "?[REDACTED]")
	for _, re := range apiKeyRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	}
	return scrubbed
}
