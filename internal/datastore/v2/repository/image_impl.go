package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/errors"
)

// imageMetaColumns is the listing projection; bytes are never selected.
var imageMetaColumns = []string{"id", "name", "content_type", "size", "created_at"}

// imageRepository implements ImageRepository.
type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create inserts a new image record.
func (r *imageRepository) Create(ctx context.Context, rec *entities.ImageRecord) error {
	if rec.ID != 0 {
		return errors.NewStd("image record ID is assigned by the store")
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetByID retrieves an image by ID.
func (r *imageRepository) GetByID(ctx context.Context, id uint) (*entities.ImageRecord, error) {
	var rec entities.ImageRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List retrieves all image metadata.
func (r *imageRepository) List(ctx context.Context) ([]entities.ImageMeta, error) {
	metas := []entities.ImageMeta{}
	err := r.db.WithContext(ctx).
		Model(&entities.ImageRecord{}).
		Select(imageMetaColumns).
		Order("id ASC").
		Find(&metas).Error
	return metas, err
}

// Delete removes the prediction first, then the image.
func (r *imageRepository) Delete(ctx context.Context, id uint) (*entities.ImageRecord, error) {
	var deleted entities.ImageRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Select(append(imageMetaColumns, "object_key")).First(&deleted, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", id).Delete(&entities.PredictionRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.ImageRecord{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}
