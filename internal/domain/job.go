package domain

import (
	"context"
	"sync/atomic"
	"time"
)

type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusMuxing      JobStatus = "muxing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// SubtitleTrack is a resolved subtitle source for muxing.
type SubtitleTrack struct {
	Language string `json:"language"`
	URL      string `json:"url"`
}

// Job represents one acquisition from resolved descriptor to muxed output.
type Job struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Status JobStatus `json:"status"`

	Descriptor StreamDescriptor `json:"descriptor"`
	Subtitles  []SubtitleTrack  `json:"subtitles,omitempty"`
	AudioLang  string           `json:"audio_lang,omitempty"`

	// OutputDir and NameTemplate produce OutputPath once the selected
	// quality is known at the end of the run.
	OutputDir    string       `json:"output_dir"`
	NameTemplate string       `json:"-"`
	NameValues   NameValues   `json:"-"`
	OutputPath   string       `json:"output_path,omitempty"`
	Quality      string       `json:"quality,omitempty"`

	BytesWritten   atomic.Uint64 `json:"-"`
	TotalBytes     atomic.Uint64 `json:"-"`
	FailedSegments []int         `json:"failed_segments,omitempty"`

	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`

	CancelFunc context.CancelFunc `json:"-"`
}

// NameValues carries the template placeholders known before acquisition.
// Quality is filled in by the pipeline once the rendition is selected.
type NameValues struct {
	Title        string `json:"title"`
	Year         string `json:"year"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	EpisodeTitle string `json:"episode_title,omitempty"`
	Tag          string `json:"tag,omitempty"`
}
