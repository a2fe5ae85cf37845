package dto

import (
	"time"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// PredictionResponse is the API view of a stored prediction.
// Taxonomy fields are null when the classifier reported nothing at that rank.
type PredictionResponse struct {
	ID         uint      `json:"id"`
	ImageID    uint      `json:"image_id"`
	Detected   bool      `json:"detected"`
	Class      *string   `json:"class"`
	Order      *string   `json:"order"`
	Family     *string   `json:"family"`
	Genus      *string   `json:"genus"`
	Species    *string   `json:"species"`
	CommonName *string   `json:"common_name"`
	Score      float64   `json:"score"`
	BBox       []float64 `json:"bbox"` // [x, y, width, height] normalized, null without a detection
	CreatedAt  time.Time `json:"created_at"`
}

// NewPredictionResponse converts a stored record.
func NewPredictionResponse(r *entities.PredictionRecord) PredictionResponse {
	resp := PredictionResponse{
		ID:         r.ID,
		ImageID:    r.ImageID,
		Detected:   r.Detected,
		Class:      r.Class,
		Order:      r.Order,
		Family:     r.Family,
		Genus:      r.Genus,
		Species:    r.Species,
		CommonName: r.CommonName,
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
	}
	if r.HasBoundingBox() {
		resp.BBox = []float64{*r.BBoxX, *r.BBoxY, *r.BBoxWidth, *r.BBoxHeight}
	}
	return resp
}

// NewPredictionList converts a record list; never nil so it encodes as [].
func NewPredictionList(recs []entities.PredictionRecord) []PredictionResponse {
	out := make([]PredictionResponse, 0, len(recs))
	for i := range recs {
		out = append(out, NewPredictionResponse(&recs[i]))
	}
	return out
}
