package repository

import (
	"context"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// ImageRepository handles image record persistence.
type ImageRepository interface {
	// Create inserts rec and assigns rec.ID.
	Create(ctx context.Context, rec *entities.ImageRecord) error
	// GetByID returns the full record including inline bytes.
	GetByID(ctx context.Context, id uint) (*entities.ImageRecord, error)
	// List returns metadata for all images ordered by ID ascending.
	List(ctx context.Context) ([]entities.ImageMeta, error)
	// Delete removes the image and its prediction in one transaction.
	// Returns the deleted record so callers can release external blobs.
	Delete(ctx context.Context, id uint) (*entities.ImageRecord, error)
}
