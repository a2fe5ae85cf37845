// Package predictionstore persists classifier results as prediction records.
package predictionstore

import (
	"context"
	"fmt"

	"github.com/tphakala/trailcam-go/internal/classifier"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

var (
	// ErrPredictionExists is returned when the image already has a prediction.
	ErrPredictionExists = errors.NewStd("image already has a prediction")

	// ErrStorage marks a write the database rejected.
	ErrStorage = errors.NewStd("prediction storage failure")
)

// Store saves and loads predictions.
type Store struct {
	repo repository.PredictionRepository
	log  logger.Logger
}

// New creates a Store over repo.
func New(repo repository.PredictionRepository, log logger.Logger) *Store {
	return &Store{repo: repo, log: log}
}

// Save persists result for imageID. The image must exist and must not
// already have a prediction.
func (s *Store) Save(ctx context.Context, result *classifier.Result, imageID uint) (*entities.PredictionRecord, error) {
	exists, err := s.repo.ExistsForImage(ctx, imageID)
	if err != nil {
		return nil, storageError(err, imageID)
	}
	if exists {
		return nil, conflictError(imageID)
	}

	rec := ToRecord(result, imageID)
	err = s.repo.Create(ctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateKey):
		// lost a race against a concurrent save for the same image
		return nil, conflictError(imageID)
	case errors.Is(err, repository.ErrImageNotFound):
		return nil, errors.New(fmt.Errorf("image %d: %w", imageID, err)).
			Component("predictionstore").
			Category(errors.CategoryNotFound).
			Context("image_id", imageID).
			Build()
	default:
		return nil, storageError(err, imageID)
	}

	s.log.Debug("prediction stored",
		logger.Uint64("prediction_id", uint64(rec.ID)),
		logger.Uint64("image_id", uint64(imageID)),
		logger.Bool("detected", rec.Detected))
	return rec, nil
}

// FetchByID returns the prediction or repository.ErrPredictionNotFound.
func (s *Store) FetchByID(ctx context.Context, id uint) (*entities.PredictionRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// FetchByImageID returns the prediction linked to imageID or repository.ErrPredictionNotFound.
func (s *Store) FetchByImageID(ctx context.Context, imageID uint) (*entities.PredictionRecord, error) {
	return s.repo.GetByImageID(ctx, imageID)
}

// ExistsForImage reports whether imageID already has a prediction.
func (s *Store) ExistsForImage(ctx context.Context, imageID uint) (bool, error) {
	return s.repo.ExistsForImage(ctx, imageID)
}

// ListAll returns all predictions ordered by ID ascending.
func (s *Store) ListAll(ctx context.Context) ([]entities.PredictionRecord, error) {
	return s.repo.List(ctx)
}

// ToRecord maps a classifier result onto a new, unsaved record.
func ToRecord(result *classifier.Result, imageID uint) *entities.PredictionRecord {
	rec := &entities.PredictionRecord{
		ImageID:    imageID,
		Class:      result.Class,
		Order:      result.Order,
		Family:     result.Family,
		Genus:      result.Genus,
		Species:    result.Species,
		CommonName: result.CommonName,
		Score:      result.Score,
		Detected:   result.Detected,
	}
	if b := result.BBox; b != nil {
		x, y, w, h := b.X, b.Y, b.Width, b.Height
		rec.BBoxX, rec.BBoxY, rec.BBoxWidth, rec.BBoxHeight = &x, &y, &w, &h
	}
	return rec
}

func conflictError(imageID uint) error {
	return errors.New(fmt.Errorf("image %d: %w", imageID, ErrPredictionExists)).
		Component("predictionstore").
		Category(errors.CategoryConflict).
		Context("image_id", imageID).
		Build()
}

func storageError(err error, imageID uint) error {
	return errors.New(fmt.Errorf("%w: %w", ErrStorage, err)).
		Component("predictionstore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityHigh).
		Context("image_id", imageID).
		Build()
}
