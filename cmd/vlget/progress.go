package main

import (
	"sync"

	"github.com/schollz/progressbar/v3"

	"vlget/internal/domain"
	"vlget/internal/engine"
)

// progressRenderer maps job progress snapshots onto one terminal bar per
// job. Jobs run one at a time, so a single live bar is enough.
type progressRenderer struct {
	mu    sync.Mutex
	jobID string
	bar   *progressbar.ProgressBar
}

func newProgressRenderer() *progressRenderer {
	return &progressRenderer{}
}

func (r *progressRenderer) observe(job *domain.Job, s engine.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jobID != job.ID {
		if r.bar != nil {
			r.bar.Finish()
		}
		total := s.TotalBytes
		if total <= 0 {
			total = -1 // spinner until the byte total is known
		}
		r.bar = progressbar.DefaultBytes(total, job.Title)
		r.jobID = job.ID
	}

	if s.TotalBytes > 0 && s.TotalBytes != r.bar.GetMax64() {
		r.bar.ChangeMax64(s.TotalBytes)
	}
	r.bar.Set64(s.Bytes)
}

func (r *progressRenderer) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}
