package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/errors"
)

// predictionRepository implements PredictionRepository.
type predictionRepository struct {
	db *gorm.DB
}

// NewPredictionRepository creates a new PredictionRepository.
func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &predictionRepository{db: db}
}

// Create inserts a prediction, mapping constraint violations to sentinels.
func (r *predictionRepository) Create(ctx context.Context, rec *entities.PredictionRecord) error {
	if rec.ImageID == 0 {
		return errors.NewStd("prediction ImageID must be set before saving")
	}
	err := r.db.WithContext(ctx).Omit("Image").Create(rec).Error
	switch {
	case err == nil:
		return nil
	case isDuplicateKey(err):
		return ErrDuplicateKey
	case isForeignKeyViolation(err):
		return ErrImageNotFound
	default:
		return err
	}
}

// GetByID retrieves a prediction by ID.
func (r *predictionRepository) GetByID(ctx context.Context, id uint) (*entities.PredictionRecord, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByImageID retrieves the prediction linked to an image.
func (r *predictionRepository) GetByImageID(ctx context.Context, imageID uint) (*entities.PredictionRecord, error) {
	return r.first(ctx, "image_id = ?", imageID)
}

func (r *predictionRepository) first(ctx context.Context, query string, arg uint) (*entities.PredictionRecord, error) {
	var rec entities.PredictionRecord
	err := r.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List retrieves all predictions.
func (r *predictionRepository) List(ctx context.Context) ([]entities.PredictionRecord, error) {
	recs := []entities.PredictionRecord{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&recs).Error
	return recs, err
}

// ExistsForImage checks whether an image already has a prediction.
func (r *predictionRepository) ExistsForImage(ctx context.Context, imageID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.PredictionRecord{}).
		Where("image_id = ?", imageID).
		Count(&count).Error
	return count > 0, err
}
