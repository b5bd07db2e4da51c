package engine

import (
	"sync/atomic"
	"time"
)

// Progress is the run-scoped counter state mutated by the scheduler. It is
// created for one run and discarded with it; no cross-run state persists.
type Progress struct {
	total      int
	totalBytes atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
	startedAt  time.Time
}

func NewProgress(total int) *Progress {
	return &Progress{total: total, startedAt: time.Now()}
}

// SetTotalBytes records the expected byte total when it is known up front.
func (p *Progress) SetTotalBytes(n int64) { p.totalBytes.Store(n) }

// AddBytes accumulates transferred bytes. Negative deltas roll back an
// aborted attempt's count.
func (p *Progress) AddBytes(n int64) { p.bytes.Add(n) }

// MarkCompleted and MarkFailed only ever increase their counters.
func (p *Progress) MarkCompleted() { p.completed.Add(1) }
func (p *Progress) MarkFailed()    { p.failed.Add(1) }

// Snapshot is the immutable view handed to progress observers.
type Snapshot struct {
	Completed  int
	Failed     int
	Total      int
	Bytes      int64
	TotalBytes int64
	StartedAt  time.Time
}

// Done reports segments with a terminal outcome, success or failure.
func (s Snapshot) Done() int { return s.Completed + s.Failed }

func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Completed:  int(p.completed.Load()),
		Failed:     int(p.failed.Load()),
		Total:      p.total,
		Bytes:      p.bytes.Load(),
		TotalBytes: p.totalBytes.Load(),
		StartedAt:  p.startedAt,
	}
}

// ProgressFunc observes one snapshot per segment completion.
type ProgressFunc func(Snapshot)
