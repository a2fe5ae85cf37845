package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// predictResponse is the SpeciesNet wrapper response body.
type predictResponse struct {
	Predictions []predictionEntry `json:"predictions"`
}

type predictionEntry struct {
	Filepath        string      `json:"filepath"`
	Prediction      string      `json:"prediction"`
	PredictionScore *float64    `json:"prediction_score"`
	Detections      []detection `json:"detections"`
}

type detection struct {
	Category string    `json:"category"`
	Label    string    `json:"label"`
	Conf     float64   `json:"conf"`
	BBox     []float64 `json:"bbox"`
}

// animalCategory is the MegaDetector category of animal detections; people
// and vehicles use other categories.
const animalCategory = "1"

// taxonomy positions in the ';' separated prediction string, after the leading uuid
const (
	posClass = iota + 1
	posOrder
	posFamily
	posGenus
	posSpecies
	posCommonName
)

// parseResponse maps a response body into a Result. Returns ErrNoDetection
// for an empty prediction list or when no detection is an animal, and
// ErrFailure for anything malformed.
func parseResponse(body []byte) (*Result, error) {
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrFailure, err)
	}
	if len(resp.Predictions) == 0 {
		return nil, ErrNoDetection
	}

	entry := resp.Predictions[0]

	animals := animalDetections(entry.Detections)
	if len(animals) == 0 {
		return nil, ErrNoDetection
	}

	if entry.PredictionScore == nil {
		return nil, fmt.Errorf("%w: prediction_score missing", ErrFailure)
	}
	score := *entry.PredictionScore
	if !inUnitRange(score) {
		return nil, fmt.Errorf("%w: prediction_score %v outside [0,1]", ErrFailure, score)
	}

	res := &Result{Score: score, Detected: true}
	ranks := splitTaxonomy(entry.Prediction)
	res.Class = ranks[posClass]
	res.Order = ranks[posOrder]
	res.Family = ranks[posFamily]
	res.Genus = ranks[posGenus]
	res.Species = ranks[posSpecies]
	res.CommonName = ranks[posCommonName]

	bbox, err := bestBBox(animals)
	if err != nil {
		return nil, err
	}
	res.BBox = bbox

	return res, nil
}

// splitTaxonomy returns the segments at positions 0..6, nil for empty or missing ones.
func splitTaxonomy(prediction string) [posCommonName + 1]*string {
	var out [posCommonName + 1]*string
	for i, seg := range strings.Split(prediction, ";") {
		if i > posCommonName {
			break
		}
		if seg = strings.TrimSpace(seg); seg != "" {
			out[i] = &seg
		}
	}
	return out
}

func animalDetections(dets []detection) []detection {
	var out []detection
	for _, d := range dets {
		if d.Category == animalCategory {
			out = append(out, d)
		}
	}
	return out
}

// bestBBox picks the box of the highest-confidence detection; the first wins ties.
func bestBBox(dets []detection) (*BBox, error) {
	best := -1
	for i := range dets {
		if best < 0 || dets[i].Conf > dets[best].Conf {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	raw := dets[best].BBox
	if len(raw) != 4 {
		return nil, fmt.Errorf("%w: bbox has %d values, want 4", ErrFailure, len(raw))
	}
	for _, v := range raw {
		if !inUnitRange(v) {
			return nil, fmt.Errorf("%w: bbox value %v outside [0,1]", ErrFailure, v)
		}
	}
	return &BBox{X: raw[0], Y: raw[1], Width: raw[2], Height: raw[3]}, nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// responseError wraps a parse failure with classifier context.
func responseError(err error, url string, status int) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryClassification).
		Context("url", url).
		Context("status_code", status).
		Build()
}
