// Package imagestore persists uploaded images. Metadata always lives in the
// relational store; bytes live inline in the row or in an S3 compatible
// object store, depending on imagestore.backend.
package imagestore

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// ErrStorage marks a write the storage backend rejected.
var ErrStorage = errors.NewStd("image storage failure")

// Store saves and loads images.
type Store struct {
	repo   repository.ImageRepository
	blobs  BlobStore // nil when bytes are kept in the database
	prefix string
	log    logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBlobStore keeps image bytes in blobs instead of the database row.
func WithBlobStore(blobs BlobStore, keyPrefix string) Option {
	return func(s *Store) {
		s.blobs = blobs
		s.prefix = keyPrefix
	}
}

// New creates a Store over repo.
func New(repo repository.ImageRepository, log logger.Logger, opts ...Option) *Store {
	s := &Store{repo: repo, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromSettings creates a Store with the backend selected in settings.
func NewFromSettings(ctx context.Context, settings *conf.Settings, repo repository.ImageRepository, log logger.Logger) (*Store, error) {
	switch settings.ImageStore.Backend {
	case conf.ImageBackendS3:
		blobs, err := NewS3Store(ctx, &settings.ImageStore.S3, log)
		if err != nil {
			return nil, err
		}
		return New(repo, log, WithBlobStore(blobs, settings.ImageStore.S3.Prefix)), nil
	case conf.ImageBackendDatabase, "":
		return New(repo, log), nil
	default:
		return nil, errors.Newf("unknown image store backend %q", settings.ImageStore.Backend).
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Backend names the active byte backend.
func (s *Store) Backend() string {
	if s.blobs != nil {
		return conf.ImageBackendS3
	}
	return conf.ImageBackendDatabase
}

// Save persists a new image and returns its assigned ID.
// With a blob backend the object is written first; if the row write then
// fails the object is removed again.
func (s *Store) Save(ctx context.Context, data []byte, name, contentType string) (uint, error) {
	rec := &entities.ImageRecord{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	if s.blobs != nil {
		rec.ObjectKey = s.objectKey(name, contentType)
		if err := s.blobs.Put(ctx, rec.ObjectKey, data, contentType); err != nil {
			return 0, storageError(err, "put_blob", name, int64(len(data)))
		}
	} else {
		rec.Data = data
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if rec.ObjectKey != "" {
			// context may be the reason the row failed, clean up regardless
			if delErr := s.blobs.Delete(context.WithoutCancel(ctx), rec.ObjectKey); delErr != nil {
				s.log.Warn("failed to remove orphaned image object",
					logger.String("object_key", rec.ObjectKey),
					logger.Error(delErr))
			}
		}
		return 0, storageError(err, "create_record", name, int64(len(data)))
	}

	s.log.Debug("image stored",
		logger.Uint64("image_id", uint64(rec.ID)),
		logger.String("content_type", contentType),
		logger.Int64("size", rec.Size),
		logger.String("backend", s.Backend()))
	return rec.ID, nil
}

// FetchByID returns the image with bytes populated, or repository.ErrImageNotFound.
func (s *Store) FetchByID(ctx context.Context, id uint) (*entities.ImageRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ObjectKey == "" {
		return rec, nil
	}
	if s.blobs == nil {
		return nil, errors.Newf("image %d is stored in object storage but no blob backend is configured", id).
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Context("object_key", rec.ObjectKey).
			Build()
	}

	data, err := s.blobs.Get(ctx, rec.ObjectKey)
	if err != nil {
		return nil, errors.New(fmt.Errorf("image %d: %w", id, err)).
			Component("imagestore").
			Category(errors.CategoryImageStorage).
			Context("operation", "get_blob").
			Context("object_key", rec.ObjectKey).
			Build()
	}
	rec.Data = data
	return rec, nil
}

// ListAll returns metadata for all images ordered by ID ascending.
func (s *Store) ListAll(ctx context.Context) ([]entities.ImageMeta, error) {
	return s.repo.List(ctx)
}

// Delete removes the image, its prediction, and its object if any.
func (s *Store) Delete(ctx context.Context, id uint) error {
	rec, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rec.ObjectKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, rec.ObjectKey); err != nil {
			s.log.Warn("image row deleted but object removal failed",
				logger.Uint64("image_id", uint64(id)),
				logger.String("object_key", rec.ObjectKey),
				logger.Error(err))
		}
	}
	return nil
}

// Ping checks the blob backend, if any.
func (s *Store) Ping(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}
	return s.blobs.Ping(ctx)
}

func (s *Store) objectKey(name, contentType string) string {
	return path.Join(s.prefix, "images", uuid.NewString()+extensionFor(name, contentType))
}

var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/webp": ".webp",
}

// extensionFor prefers the uploaded file's extension and falls back to the MIME type.
func extensionFor(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		return ext
	}
	if ext, ok := knownExtensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func storageError(err error, operation, name string, size int64) error {
	return errors.New(fmt.Errorf("%w: %w", ErrStorage, err)).
		Component("imagestore").
		Category(errors.CategoryImageStorage).
		Priority(errors.PriorityHigh).
		Context("operation", operation).
		FileContext(name, size).
		Build()
}
