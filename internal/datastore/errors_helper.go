package datastore

import (
	"fmt"
	"strings"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	} else if isCriticalDBError(err) {
		builder = builder.Priority(errors.PriorityCritical)
	}

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// isCriticalDBError flags failures that need operator attention.
func isCriticalDBError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "no space") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "malformed")
}
