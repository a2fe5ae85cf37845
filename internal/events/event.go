// Package events delivers prediction-created events to an MQTT broker through
// an asynchronous bus.
package events

import (
	"context"
	"time"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
)

// PredictionCreated is the JSON payload published after a prediction is stored.
type PredictionCreated struct {
	Event        string    `json:"event"`
	PredictionID uint      `json:"prediction_id"`
	ImageID      uint      `json:"image_id"`
	ImageName    string    `json:"image_name,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Detected     bool      `json:"detected"`
	Class        *string   `json:"class"`
	Order        *string   `json:"order"`
	Family       *string   `json:"family"`
	Genus        *string   `json:"genus"`
	Species      *string   `json:"species"`
	CommonName   *string   `json:"common_name"`
	Score        float64   `json:"score"`
	BBox         []float64 `json:"bbox,omitempty"` // [x, y, width, height]
	Timestamp    time.Time `json:"timestamp"`
}

// EventPredictionCreated is the event name carried in every payload.
const EventPredictionCreated = "prediction.created"

// NewPredictionCreated builds the payload for a stored prediction.
func NewPredictionCreated(img *entities.ImageMeta, rec *entities.PredictionRecord) PredictionCreated {
	ev := PredictionCreated{
		Event:        EventPredictionCreated,
		PredictionID: rec.ID,
		ImageID:      rec.ImageID,
		Detected:     rec.Detected,
		Class:        rec.Class,
		Order:        rec.Order,
		Family:       rec.Family,
		Genus:        rec.Genus,
		Species:      rec.Species,
		CommonName:   rec.CommonName,
		Score:        rec.Score,
		Timestamp:    rec.CreatedAt,
	}
	if img != nil {
		ev.ImageName = img.Name
		ev.ContentType = img.ContentType
	}
	if rec.HasBoundingBox() {
		ev.BBox = []float64{*rec.BBoxX, *rec.BBoxY, *rec.BBoxWidth, *rec.BBoxHeight}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

// Publisher sends prediction events.
type Publisher interface {
	PublishPrediction(ctx context.Context, img *entities.ImageMeta, rec *entities.PredictionRecord) error
	Close()
}

// Nop discards events. Used when MQTT is disabled.
type Nop struct{}

// PublishPrediction does nothing.
func (Nop) PublishPrediction(context.Context, *entities.ImageMeta, *entities.PredictionRecord) error {
	return nil
}

// Close does nothing.
func (Nop) Close() {}
