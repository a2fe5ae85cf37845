package classifier

// Result is the normalized outcome of one classification call.
// Taxonomic ranks are nil when the classifier left them empty.
type Result struct {
	Class      *string
	Order      *string
	Family     *string
	Genus      *string
	Species    *string
	CommonName *string

	// Score is the classifier's confidence in [0,1].
	Score float64

	// BBox is the highest-confidence detection box, nil when none was reported.
	BBox *BBox

	// Detected is false for the no-detection outcome.
	Detected bool
}

// BBox is a normalized [x, y, width, height] box, every value in [0,1].
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NoDetection returns the Result recorded when the classifier found nothing.
func NoDetection() *Result {
	return &Result{Detected: false}
}

// Label returns the most specific name available, for logs and events.
func (r *Result) Label() string {
	for _, v := range []*string{r.CommonName, r.Species, r.Genus, r.Family, r.Order, r.Class} {
		if v != nil {
			return *v
		}
	}
	return ""
}
