package imagestore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// S3Store is a BlobStore on an S3 compatible object store.
type S3Store struct {
	mc     *minio.Client
	bucket string
	log    logger.Logger
}

// NewS3Store connects to the object store and creates the bucket when missing.
func NewS3Store(ctx context.Context, cfg *conf.S3Settings, log logger.Logger) (*S3Store, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, s3Error(err, "new_client", cfg.Bucket, "")
	}

	s := &S3Store{mc: mc, bucket: cfg.Bucket, log: log}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, s3Error(err, "bucket_exists", cfg.Bucket, "")
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, s3Error(err, "make_bucket", cfg.Bucket, "")
		}
		log.Info("created image bucket", logger.String("bucket", cfg.Bucket))
	}

	return s, nil
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.mc.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return s3Error(err, "put_object", s.bucket, key)
	}
	s.log.Debug("object stored",
		logger.String("key", key),
		logger.Int("size", len(data)))
	return nil
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapNotFound(err, "get_object", key)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapNotFound(err, "read_object", key)
	}
	return data, nil
}

// Delete removes the object at key. Deleting a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.NewStd("object key cannot be empty")
	}
	if err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return s3Error(err, "remove_object", s.bucket, key)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.mc.BucketExists(ctx, s.bucket); err != nil {
		return s3Error(err, "ping", s.bucket, "")
	}
	return nil
}

func (s *S3Store) mapNotFound(err error, operation, key string) error {
	if isNoSuchKey(err) {
		return ErrBlobNotFound
	}
	return s3Error(err, operation, s.bucket, key)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func s3Error(err error, operation, bucket, key string) error {
	b := errors.New(err).
		Component("imagestore").
		Category(errors.CategoryImageStorage).
		Context("operation", operation).
		Context("bucket", bucket)
	if key != "" {
		b = b.Context("object_key", key)
	}
	return b.Build()
}

var _ BlobStore = (*S3Store)(nil)
