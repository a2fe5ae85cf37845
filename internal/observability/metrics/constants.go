package metrics

// Histogram bucket parameters shared by the collectors.
const (
	// BucketStart1ms starts latency histograms at one millisecond.
	BucketStart1ms = 0.001
	// BucketStart10ms starts histograms for remote calls.
	BucketStart10ms = 0.01
	// BucketStart64B starts small payload histograms.
	BucketStart64B = 64
	// BucketStart1KB starts image size histograms.
	BucketStart1KB = 1024

	BucketFactor2 = 2
	BucketFactor4 = 4

	BucketCount10 = 10
	BucketCount12 = 12
)

// Outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
