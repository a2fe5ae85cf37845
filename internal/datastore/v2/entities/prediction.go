package entities

import "time"

// PredictionRecord stores the classifier output for one image.
// Taxonomic ranks and bounding box values are nil when the classifier did not
// report them; Detected is false for the no-detection outcome.
type PredictionRecord struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	ImageID uint `gorm:"not null;uniqueIndex:idx_predictions_image" json:"image_id"`

	Class      *string `gorm:"size:100" json:"class"`
	Order      *string `gorm:"column:taxon_order;size:100" json:"order"` // ORDER is reserved in SQL
	Family     *string `gorm:"size:100" json:"family"`
	Genus      *string `gorm:"size:100" json:"genus"`
	Species    *string `gorm:"size:100" json:"species"`
	CommonName *string `gorm:"size:200" json:"common_name"`

	Score float64 `gorm:"not null" json:"score"`

	BBoxX      *float64 `gorm:"column:bbox_x" json:"bbox_x"`
	BBoxY      *float64 `gorm:"column:bbox_y" json:"bbox_y"`
	BBoxWidth  *float64 `gorm:"column:bbox_width" json:"bbox_width"`
	BBoxHeight *float64 `gorm:"column:bbox_height" json:"bbox_height"`

	Detected  bool      `gorm:"not null" json:"detected"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationship
	Image *ImageRecord `gorm:"foreignKey:ImageID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (PredictionRecord) TableName() string {
	return "predictions"
}

// HasBoundingBox reports whether all four box coordinates are present.
func (p *PredictionRecord) HasBoundingBox() bool {
	return p.BBoxX != nil && p.BBoxY != nil && p.BBoxWidth != nil && p.BBoxHeight != nil
}

// All returns the entities to migrate, parents first.
func All() []any {
	return []any{&ImageRecord{}, &PredictionRecord{}}
}
