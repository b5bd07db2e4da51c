package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"vlget/internal/domain"
)

// Acquisition is the read model for one recorded run.
type Acquisition struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Status         domain.JobStatus `json:"status"`
	OutputPath     string           `json:"output_path,omitempty"`
	Quality        string           `json:"quality,omitempty"`
	BytesWritten   uint64           `json:"bytes_written"`
	FailedSegments []int            `json:"failed_segments,omitempty"`
	Error          string           `json:"error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// acquisitionDBO maps the acquisitions table row. Failed segment indices
// are stored as a JSON array in a text column.
type acquisitionDBO struct {
	ID             string
	Title          string
	Status         string
	OutputPath     string
	Quality        string
	BytesWritten   int64
	FailedSegments string
	Error          string
	StartedAt      time.Time
	FinishedAt     sql.NullTime
}

type scanner interface {
	Scan(dest ...any) error
}

func (d *acquisitionDBO) scan(row scanner) error {
	return row.Scan(
		&d.ID, &d.Title, &d.Status, &d.OutputPath, &d.Quality,
		&d.BytesWritten, &d.FailedSegments, &d.Error, &d.StartedAt, &d.FinishedAt,
	)
}

func (d *acquisitionDBO) FromDomain(job *domain.Job) error {
	segs, err := json.Marshal(job.FailedSegments)
	if err != nil {
		return err
	}
	d.ID = job.ID
	d.Title = job.Title
	d.Status = string(job.Status)
	d.OutputPath = job.OutputPath
	d.Quality = job.Quality
	d.BytesWritten = int64(job.BytesWritten.Load())
	d.FailedSegments = string(segs)
	d.Error = job.Error
	d.StartedAt = job.StartedAt
	d.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (d *acquisitionDBO) ToDomain() (*Acquisition, error) {
	var segs []int
	if d.FailedSegments != "" {
		if err := json.Unmarshal([]byte(d.FailedSegments), &segs); err != nil {
			return nil, err
		}
	}
	acq := &Acquisition{
		ID:             d.ID,
		Title:          d.Title,
		Status:         domain.JobStatus(d.Status),
		OutputPath:     d.OutputPath,
		Quality:        d.Quality,
		BytesWritten:   uint64(d.BytesWritten),
		FailedSegments: segs,
		Error:          d.Error,
		StartedAt:      d.StartedAt,
	}
	if d.FinishedAt.Valid {
		acq.FinishedAt = d.FinishedAt.Time
	}
	return acq, nil
}
