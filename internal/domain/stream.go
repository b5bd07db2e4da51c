package domain

// StreamKind selects the acquisition path for a descriptor.
type StreamKind string

const (
	KindSegmented StreamKind = "segmented"
	KindDirect    StreamKind = "direct"
)

// StreamDescriptor is the resolved input for one acquisition run.
// It is built once by the resolver and never mutated afterwards.
type StreamDescriptor struct {
	Kind        StreamKind `json:"kind"`
	ManifestURL string     `json:"manifest_url,omitempty"`
	DirectURL   string     `json:"direct_url,omitempty"`

	// ExpectedSize is a hint only; 0 means unknown.
	ExpectedSize int64 `json:"expected_size,omitempty"`

	// PreferredHeight drives rendition selection (720, 1080, ...).
	// 0 selects the highest-bandwidth variant.
	PreferredHeight int `json:"preferred_height,omitempty"`

	// Concurrency overrides the configured segment concurrency when > 0.
	Concurrency int `json:"concurrency,omitempty"`
}

// SegmentDescriptor is one entry of a parsed media playlist. Indices are
// dense and 0-based, matching the manifest's declared play order.
type SegmentDescriptor struct {
	Index          int
	URL            string
	Duration       float64
	EstimatedBytes int64
}

// SegmentResult is the terminal outcome of fetching one segment. Successful
// segments are spooled to disk so assembly can stream them without holding
// the whole run in memory.
type SegmentResult struct {
	Index     int
	SpoolPath string
	Bytes     int64
	Err       error
}

// OK reports whether the segment was fetched and spooled successfully.
func (r SegmentResult) OK() bool { return r.Err == nil }

// AcquisitionResult is the terminal artifact of one run. Ownership of the
// output file transfers to the caller when Success is true.
type AcquisitionResult struct {
	OutputPath     string
	Success        bool
	FailedSegments []int
	BytesWritten   int64

	// Quality is the selected rendition ("1920x1080"), or "RAW" for the
	// direct-file path.
	Quality string
}
