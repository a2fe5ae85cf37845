// Package ingest runs the upload pipeline: validate, store the image, call
// the classifier once, store the prediction.
//
// The image is persisted before the classifier is called and is never rolled
// back, so a failed classification can be retried with Reclassify.
package ingest

import (
	"context"
	"time"

	"github.com/tphakala/trailcam-go/internal/classifier"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/predictionstore"
)

// ImageStore persists uploaded images.
type ImageStore interface {
	Save(ctx context.Context, data []byte, name, contentType string) (uint, error)
	FetchByID(ctx context.Context, id uint) (*entities.ImageRecord, error)
}

// Classifier classifies image bytes.
type Classifier interface {
	Classify(ctx context.Context, data []byte, filename, contentType string) (*classifier.Result, error)
}

// PredictionStore persists classifier results.
type PredictionStore interface {
	Save(ctx context.Context, result *classifier.Result, imageID uint) (*entities.PredictionRecord, error)
	ExistsForImage(ctx context.Context, imageID uint) (bool, error)
}

// Publisher announces stored predictions.
type Publisher interface {
	PublishPrediction(ctx context.Context, image *entities.ImageMeta, prediction *entities.PredictionRecord) error
}

// Metrics records pipeline outcomes.
type Metrics interface {
	ObserveIngest(operation, outcome string, duration time.Duration)
	ObserveImageSize(size int64)
}

// Pipeline runs ingestion requests. Safe for concurrent use; each call is
// one independent, sequential unit of work.
type Pipeline struct {
	images      ImageStore
	classifier  Classifier
	predictions PredictionStore
	publisher   Publisher
	metrics     Metrics
	validator   *uploadValidator
	log         logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher sends a prediction-created event after each stored prediction.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithMetrics records outcomes and durations.
func WithMetrics(m Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// New creates a Pipeline.
func New(images ImageStore, cls Classifier, predictions PredictionStore, limits Limits, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		images:      images,
		classifier:  cls,
		predictions: predictions,
		validator:   newUploadValidator(limits),
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest validates and stores the upload, classifies it and stores the prediction.
func (p *Pipeline) Ingest(ctx context.Context, upload Upload) (rec *entities.PredictionRecord, err error) {
	start := time.Now()
	defer func() { p.observe("ingest", start, err) }()

	log := p.log.WithContext(ctx)

	if err := p.validator.normalize(&upload); err != nil {
		log.Info("upload rejected",
			logger.String("file", upload.Filename),
			logger.Error(err))
		return nil, p.fail(InvalidRequest, 0, err)
	}

	imageID, err := p.images.Save(ctx, upload.Data, upload.Filename, upload.ContentType)
	if err != nil {
		return nil, p.fail(StorageFailure, 0, err)
	}
	log.Info("image stored",
		logger.Uint64("image_id", uint64(imageID)),
		logger.String("file", upload.Filename),
		logger.String("content_type", upload.ContentType),
		logger.Int("size", len(upload.Data)))
	if p.metrics != nil {
		p.metrics.ObserveImageSize(int64(len(upload.Data)))
	}

	meta := &entities.ImageMeta{
		ID:          imageID,
		Name:        upload.Filename,
		ContentType: upload.ContentType,
		Size:        int64(len(upload.Data)),
	}
	return p.classifyAndStore(ctx, meta, upload.Data)
}

// Reclassify runs classification for an already stored image that has no
// prediction yet.
func (p *Pipeline) Reclassify(ctx context.Context, imageID uint) (rec *entities.PredictionRecord, err error) {
	start := time.Now()
	defer func() { p.observe("reclassify", start, err) }()

	img, err := p.images.FetchByID(ctx, imageID)
	if errors.Is(err, repository.ErrImageNotFound) {
		return nil, p.fail(NotFound, 0, err)
	}
	if err != nil {
		return nil, p.fail(StorageFailure, imageID, err)
	}

	exists, err := p.predictions.ExistsForImage(ctx, imageID)
	if err != nil {
		return nil, p.fail(StorageFailure, imageID, err)
	}
	if exists {
		return nil, p.fail(Conflict, imageID, predictionstore.ErrPredictionExists)
	}

	meta := img.Meta()
	return p.classifyAndStore(ctx, &meta, img.Data)
}

// classifyAndStore runs once the image is durable. It detaches from the
// caller's cancellation so a dropped client never leaves an image without its
// prediction; the classifier timeout still bounds the call.
func (p *Pipeline) classifyAndStore(ctx context.Context, img *entities.ImageMeta, data []byte) (*entities.PredictionRecord, error) {
	ctx = context.WithoutCancel(ctx)
	log := p.log.WithContext(ctx).With(logger.Uint64("image_id", uint64(img.ID)))

	result, err := p.classifier.Classify(ctx, data, img.Name, img.ContentType)
	switch {
	case err == nil:
	case errors.Is(err, classifier.ErrNoDetection):
		log.Info("classifier reported no detection, storing empty prediction")
		result = classifier.NoDetection()
	case errors.Is(err, classifier.ErrUnavailable):
		return nil, p.fail(ClassificationUnavailable, img.ID, err)
	default:
		return nil, p.fail(ClassificationFailure, img.ID, err)
	}

	rec, err := p.predictions.Save(ctx, result, img.ID)
	switch {
	case err == nil:
	case errors.Is(err, predictionstore.ErrPredictionExists):
		return nil, p.fail(Conflict, img.ID, err)
	case errors.Is(err, repository.ErrImageNotFound):
		// image deleted between store and save
		return nil, p.fail(NotFound, img.ID, err)
	default:
		return nil, p.fail(StorageFailure, img.ID, err)
	}

	log.Info("prediction stored",
		logger.Uint64("prediction_id", uint64(rec.ID)),
		logger.String("label", result.Label()),
		logger.Float64("score", rec.Score),
		logger.Bool("detected", rec.Detected))

	p.publish(ctx, img, rec)
	return rec, nil
}

// publish is best effort; the prediction is already stored.
func (p *Pipeline) publish(ctx context.Context, img *entities.ImageMeta, rec *entities.PredictionRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishPrediction(ctx, img, rec); err != nil {
		p.log.WithContext(ctx).Warn("failed to publish prediction event",
			logger.Uint64("prediction_id", uint64(rec.ID)),
			logger.Error(err))
	}
}

// fail wraps err as a pipeline error and reports it with the matching category.
func (p *Pipeline) fail(kind Kind, imageID uint, err error) *Error {
	b := errors.New(err).
		Component("ingest").
		Category(categoryFor(kind)).
		Context("kind", kind.String())
	if imageID != 0 {
		b = b.Context("image_id", imageID)
	}
	if kind == InvalidRequest || kind == NotFound || kind == Conflict {
		b = b.Priority(errors.PriorityLow)
	}
	return newError(kind, imageID, b.Build())
}

func (p *Pipeline) observe(operation string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	p.metrics.ObserveIngest(operation, outcome, time.Since(start))
}
