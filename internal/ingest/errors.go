package ingest

import (
	"fmt"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// Kind classifies a pipeline failure for callers.
type Kind int

const (
	// Internal is any failure not covered by the other kinds.
	Internal Kind = iota
	// InvalidRequest means the upload was rejected before anything was stored.
	InvalidRequest
	// StorageFailure means the image or the prediction could not be persisted.
	StorageFailure
	// ClassificationUnavailable means the classifier could not be reached or timed out.
	ClassificationUnavailable
	// ClassificationFailure means the classifier answered with an error or an unusable body.
	ClassificationFailure
	// NotFound means the referenced image does not exist.
	NotFound
	// Conflict means the image already has a prediction.
	Conflict
)

var kindNames = map[Kind]string{
	Internal:                  "internal",
	InvalidRequest:            "invalid_request",
	StorageFailure:            "storage_failure",
	ClassificationUnavailable: "classification_unavailable",
	ClassificationFailure:     "classification_failure",
	NotFound:                  "not_found",
	Conflict:                  "conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by the pipeline. ImageID is non-zero once the image was
// stored, so a failed classification still tells the caller which image to retry.
type Error struct {
	Kind    Kind
	ImageID uint
	Err     error
}

func (e *Error) Error() string {
	if e.ImageID != 0 {
		return fmt.Sprintf("%s (image %d): %v", e.Kind, e.ImageID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the pipeline kind of err, Internal when err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

// ImageIDOf returns the stored image ID carried by err, if any.
func ImageIDOf(err error) (uint, bool) {
	var pe *Error
	if errors.As(err, &pe) && pe.ImageID != 0 {
		return pe.ImageID, true
	}
	return 0, false
}

func newError(kind Kind, imageID uint, err error) *Error {
	return &Error{Kind: kind, ImageID: imageID, Err: err}
}

// categoryFor maps a kind to the error category used for reporting.
func categoryFor(kind Kind) errors.ErrorCategory {
	switch kind {
	case InvalidRequest:
		return errors.CategoryValidation
	case StorageFailure:
		return errors.CategoryImageStorage
	case ClassificationUnavailable, ClassificationFailure:
		return errors.CategoryClassification
	case NotFound:
		return errors.CategoryNotFound
	case Conflict:
		return errors.CategoryConflict
	default:
		return errors.CategoryProcessing
	}
}
