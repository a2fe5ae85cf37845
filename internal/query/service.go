// Package query serves read-only lookups over stored images and predictions.
package query

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// ImageReader loads stored images.
type ImageReader interface {
	FetchByID(ctx context.Context, id uint) (*entities.ImageRecord, error)
	ListAll(ctx context.Context) ([]entities.ImageMeta, error)
}

// PredictionReader loads stored predictions.
type PredictionReader interface {
	FetchByID(ctx context.Context, id uint) (*entities.PredictionRecord, error)
	FetchByImageID(ctx context.Context, imageID uint) (*entities.PredictionRecord, error)
	ListAll(ctx context.Context) ([]entities.PredictionRecord, error)
}

// Service answers queries. It never writes.
//
// Predictions are immutable once stored, so by-id lookups are cached; only
// hits are cached because an image without a prediction may get one later.
// Lists always go to the store.
type Service struct {
	images      ImageReader
	predictions PredictionReader
	cache       *cache.Cache
	log         logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches by-id prediction lookups for ttl.
func WithCache(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// New creates a Service.
func New(images ImageReader, predictions PredictionReader, log logger.Logger, opts ...Option) *Service {
	s := &Service{images: images, predictions: predictions, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListImages returns metadata for all stored images ordered by ID.
func (s *Service) ListImages(ctx context.Context) ([]entities.ImageMeta, error) {
	return s.images.ListAll(ctx)
}

// GetImage returns the image with its bytes and content type.
func (s *Service) GetImage(ctx context.Context, id uint) (*entities.ImageRecord, error) {
	return s.images.FetchByID(ctx, id)
}

// ListPredictions returns all predictions ordered by ID.
func (s *Service) ListPredictions(ctx context.Context) ([]entities.PredictionRecord, error) {
	return s.predictions.ListAll(ctx)
}

// GetPrediction returns one prediction.
func (s *Service) GetPrediction(ctx context.Context, id uint) (*entities.PredictionRecord, error) {
	return s.cached(predictionKey(id), func() (*entities.PredictionRecord, error) {
		return s.predictions.FetchByID(ctx, id)
	})
}

// GetPredictionForImage returns the prediction linked to an image.
func (s *Service) GetPredictionForImage(ctx context.Context, imageID uint) (*entities.PredictionRecord, error) {
	return s.cached(imagePredictionKey(imageID), func() (*entities.PredictionRecord, error) {
		return s.predictions.FetchByImageID(ctx, imageID)
	})
}

// Forget drops cached entries for an image, used after deletion.
func (s *Service) Forget(imageID uint, predictionID uint) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(imagePredictionKey(imageID))
	s.cache.Delete(predictionKey(predictionID))
}

// CacheItems reports how many entries are cached.
func (s *Service) CacheItems() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.ItemCount()
}

func (s *Service) cached(key string, load func() (*entities.PredictionRecord, error)) (*entities.PredictionRecord, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			rec := *v.(*entities.PredictionRecord) //nolint:forcetypeassert // only records are stored
			return &rec, nil
		}
	}

	rec, err := load()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		stored := *rec
		s.cache.SetDefault(key, &stored)
		s.log.Trace("prediction cached", logger.String("key", key))
	}
	return rec, nil
}

func predictionKey(id uint) string {
	return "prediction:" + strconv.FormatUint(uint64(id), 10)
}

func imagePredictionKey(imageID uint) string {
	return "image-prediction:" + strconv.FormatUint(uint64(imageID), 10)
}
