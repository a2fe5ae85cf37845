// Package dto contains data transfer objects for API v2 responses.
package dto

import (
	"time"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// ImageResponse describes a stored image without its bytes.
type ImageResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewImageResponse converts image metadata.
func NewImageResponse(m *entities.ImageMeta) ImageResponse {
	return ImageResponse{
		ID:          m.ID,
		Name:        m.Name,
		ContentType: m.ContentType,
		Size:        m.Size,
		CreatedAt:   m.CreatedAt,
	}
}

// NewImageList converts a metadata list; never nil so it encodes as [].
func NewImageList(metas []entities.ImageMeta) []ImageResponse {
	out := make([]ImageResponse, 0, len(metas))
	for i := range metas {
		out = append(out, NewImageResponse(&metas[i]))
	}
	return out
}
