package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/ingest"
)

// statusForKind maps pipeline kinds to HTTP status codes.
var statusForKind = map[ingest.Kind]int{
	ingest.InvalidRequest:            http.StatusBadRequest,
	ingest.StorageFailure:            http.StatusInternalServerError,
	ingest.ClassificationUnavailable: http.StatusServiceUnavailable,
	ingest.ClassificationFailure:     http.StatusBadGateway,
	ingest.NotFound:                  http.StatusNotFound,
	ingest.Conflict:                  http.StatusConflict,
	ingest.Internal:                  http.StatusInternalServerError,
}

var messageForKind = map[ingest.Kind]string{
	ingest.InvalidRequest:            "Invalid upload",
	ingest.StorageFailure:            "Failed to store data",
	ingest.ClassificationUnavailable: "Classifier unavailable, image stored",
	ingest.ClassificationFailure:     "Classifier returned an unusable response, image stored",
	ingest.NotFound:                  "Image not found",
	ingest.Conflict:                  "Image already has a prediction",
	ingest.Internal:                  "Internal error",
}

// handlePipelineError writes the response for an Ingest or Reclassify failure.
func (c *Controller) handlePipelineError(ctx echo.Context, err error) error {
	kind := ingest.KindOf(err)
	code, ok := statusForKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return c.HandleError(ctx, err, messageForKind[kind], code, kind)
}

// handleQueryError writes the response for a failed lookup.
func (c *Controller) handleQueryError(ctx echo.Context, err error, notFoundMessage string) error {
	if isNotFound(err) {
		return c.HandleError(ctx, err, notFoundMessage, http.StatusNotFound, ingest.NotFound)
	}
	return c.HandleError(ctx, err, "Failed to read from store", http.StatusInternalServerError, ingest.StorageFailure)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrImageNotFound) ||
		errors.Is(err, repository.ErrPredictionNotFound) ||
		errors.IsNotFound(err)
}
