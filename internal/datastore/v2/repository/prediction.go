package repository

import (
	"context"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// PredictionRepository handles prediction record persistence.
type PredictionRepository interface {
	// Create inserts rec and assigns rec.ID. Returns ErrDuplicateKey when the
	// image already has a prediction and ErrImageNotFound when it does not exist.
	Create(ctx context.Context, rec *entities.PredictionRecord) error
	GetByID(ctx context.Context, id uint) (*entities.PredictionRecord, error)
	GetByImageID(ctx context.Context, imageID uint) (*entities.PredictionRecord, error)
	// List returns all predictions ordered by ID ascending.
	List(ctx context.Context) ([]entities.PredictionRecord, error)
	ExistsForImage(ctx context.Context, imageID uint) (bool, error)
}
