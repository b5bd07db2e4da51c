package controllers

import (
	"time"

	"vlget/internal/domain"
)

// CreateJobRequest is the POST /api/jobs body.
type CreateJobRequest struct {
	URL      string `json:"url"`
	Seasons  string `json:"seasons,omitempty"`
	Episodes string `json:"episodes,omitempty"`
	Height   int    `json:"height,omitempty"`
	Raw      bool   `json:"raw,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

// JobView is the wire shape of a queued or running job. The domain job
// carries atomics and a cancel func, so it never marshals directly.
type JobView struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Status         domain.JobStatus `json:"status"`
	Kind           string           `json:"kind"`
	BytesWritten   uint64           `json:"bytes_written"`
	TotalBytes     uint64           `json:"total_bytes"`
	FailedSegments []int            `json:"failed_segments,omitempty"`
	Quality        string           `json:"quality,omitempty"`
	OutputPath     string           `json:"output_path,omitempty"`
	Error          string           `json:"error,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
}

func viewOf(job *domain.Job) JobView {
	v := JobView{
		ID:             job.ID,
		Title:          job.Title,
		Status:         job.Status,
		Kind:           string(job.Descriptor.Kind),
		BytesWritten:   job.BytesWritten.Load(),
		TotalBytes:     job.TotalBytes.Load(),
		FailedSegments: job.FailedSegments,
		Quality:        job.Quality,
		OutputPath:     job.OutputPath,
		Error:          job.Error,
	}
	if !job.StartedAt.IsZero() {
		t := job.StartedAt
		v.StartedAt = &t
	}
	return v
}

func viewsOf(jobs []*domain.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewOf(job))
	}
	return views
}
