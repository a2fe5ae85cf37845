// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryDatabase       ErrorCategory = "database"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategorySystem         ErrorCategory = "system-resource"
	CategoryImageStorage   ErrorCategory = "image-storage"
	CategoryClassification ErrorCategory = "classification"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryGeneric        ErrorCategory = "generic"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryProcessing     ErrorCategory = "processing"
	CategoryLimit          ErrorCategory = "limit"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryCancellation   ErrorCategory = "cancellation"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

const modulePath = "github.com/tphakala/trailcam-go/"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, anything else through the wrapped chain.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected if not set)
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error.
// Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// NetworkContext adds network-specific context (URLs are anonymized)
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	if url != "" {
		eb.Context("url_category", categorizeURL(url))
	}
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

// FileContext adds upload-specific context without leaking the filename
func (eb *ErrorBuilder) FileContext(filename string, size int64) *ErrorBuilder {
	if filename != "" {
		eb.Context("file_extension", getFileExtension(filename))
	}
	if size > 0 {
		eb.Context("file_size_category", categorizeFileSize(size))
	}
	return eb
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError and triggers optional telemetry reporting
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = NewStd("unknown error")
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	// Fast path: no reporting configured, skip stack walking
	if !hasActiveReporting.Load() {
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		if ee.Category == "" {
			ee.Category = detectCategory(eb.err)
		}
		return ee
	}

	if ee.component == "" {
		ee.component = detectComponent()
	}
	if ee.Category == "" {
		ee.Category = detectCategory(eb.err)
	}

	reportToTelemetry(ee)
	runErrorHooks(ee)

	return ee
}

// hasActiveReporting is true when either a telemetry reporter or an error hook is installed
var hasActiveReporting atomic.Bool

// ErrorHook is invoked for every built error while reporting is active
type ErrorHook func(ee *EnhancedError)

var (
	hooksMu    sync.RWMutex
	errorHooks []ErrorHook
)

// AddErrorHook registers a hook called for each built error
func AddErrorHook(hook ErrorHook) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = append(errorHooks, hook)
	updateActiveReporting()
}

// ClearErrorHooks removes all registered hooks
func ClearErrorHooks() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = nil
	updateActiveReporting()
}

func runErrorHooks(ee *EnhancedError) {
	hooksMu.RLock()
	hooks := errorHooks
	hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(ee)
	}
}

// updateActiveReporting must be called with hooksMu held
func updateActiveReporting() {
	reporter := GetTelemetryReporter()
	hasActiveReporting.Store(len(errorHooks) > 0 || (reporter != nil && reporter.IsEnabled()))
}

// detectComponent derives a component name from the first caller outside this package
func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.Contains(frame.Function, modulePath+"internal/errors") {
			if component := componentFromFunc(frame.Function); component != "" {
				return component
			}
		}
		if !more {
			break
		}
	}
	return ComponentUnknown
}

// componentFromFunc maps "github.com/x/y/internal/ingest.(*Pipeline).Ingest" to "ingest"
func componentFromFunc(funcName string) string {
	trimmed := strings.TrimPrefix(funcName, modulePath)
	trimmed = strings.TrimPrefix(trimmed, "internal/")
	if slash := strings.LastIndex(trimmed, "/"); slash >= 0 {
		trimmed = trimmed[slash+1:]
	}
	if dot := strings.Index(trimmed, "."); dot > 0 {
		return trimmed[:dot]
	}
	return ""
}

// detectCategory falls back to CategorizedError, a nested EnhancedError, or message heuristics
func detectCategory(err error) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(msg, "connection"):
		return CategoryNetwork
	case strings.Contains(msg, "not found"):
		return CategoryNotFound
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation"):
		return CategoryValidation
	}
	return CategoryGeneric
}

func getFileExtension(path string) string {
	if lastDot := strings.LastIndex(path, "."); lastDot > 0 && lastDot < len(path)-1 {
		return strings.ToLower(path[lastDot+1:])
	}
	return "none"
}

func categorizeFileSize(size int64) string {
	switch {
	case size < 1024:
		return "tiny"
	case size < 1024*1024:
		return "small"
	case size < 10*1024*1024:
		return "medium"
	case size < 100*1024*1024:
		return "large"
	default:
		return "very-large"
	}
}

func categorizeURL(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "http://"):
		return "http-endpoint"
	case strings.HasPrefix(url, "https://"):
		return "https-endpoint"
	default:
		return "other-protocol"
	}
}

// Standard library passthrough functions

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// IsNotFound checks if an error is an EnhancedError with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
