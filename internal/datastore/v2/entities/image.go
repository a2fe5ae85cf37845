package entities

import "time"

// ImageRecord stores an uploaded image. Exactly one of Data or ObjectKey is
// set depending on the configured image store backend.
type ImageRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255" json:"name"`
	ContentType string    `gorm:"size:100;not null" json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	Data        []byte    `json:"-"`
	ObjectKey   string    `gorm:"size:512;index" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (ImageRecord) TableName() string {
	return "images"
}

// ImageMeta is the listing projection of ImageRecord, without bytes.
type ImageMeta struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Meta returns the listing projection of r.
func (r *ImageRecord) Meta() ImageMeta {
	return ImageMeta{
		ID:          r.ID,
		Name:        r.Name,
		ContentType: r.ContentType,
		Size:        r.Size,
		CreatedAt:   r.CreatedAt,
	}
}
