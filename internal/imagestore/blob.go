package imagestore

import (
	"context"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// ErrBlobNotFound is returned by a BlobStore when the key does not exist.
var ErrBlobNotFound = errors.NewStd("blob not found")

// BlobStore keeps raw image bytes outside the relational store.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
