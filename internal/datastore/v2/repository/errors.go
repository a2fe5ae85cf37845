package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.NewStd("image not found")

	// ErrPredictionNotFound indicates the requested prediction does not exist.
	ErrPredictionNotFound = errors.NewStd("prediction not found")

	// ErrDuplicateKey indicates a unique constraint rejected the write.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// isDuplicateKey recognizes unique violations from translated GORM errors
// and from raw SQLite and MySQL driver messages.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// isForeignKeyViolation recognizes foreign key violations the same way.
func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "a foreign key constraint fails")
}
