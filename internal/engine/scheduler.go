package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vlget/internal/domain"
	"vlget/internal/infra/logger"
)

// Fetcher is the segment transport. fetch.Client satisfies it.
type Fetcher interface {
	FetchToFile(ctx context.Context, url, path string, onChunk func(int64)) (int64, error)
}

// Scheduler fans segment fetches out over a bounded worker pool and joins
// all outcomes before returning. Completion order is unconstrained; every
// dispatched segment gets exactly one terminal result.
type Scheduler struct {
	fetcher  Fetcher
	spoolDir string
	log      *logger.Logger
}

func NewScheduler(fetcher Fetcher, spoolDir string, log *logger.Logger) *Scheduler {
	return &Scheduler{fetcher: fetcher, spoolDir: spoolDir, log: log}
}

// Run dispatches every segment over at most limit concurrent fetches and
// returns once all dispatched work has reported. Per-segment failures are
// returned in the map alongside successes; the caller decides fatality.
// On cancellation dispatch stops promptly, in-flight fetches wind down
// naturally, and the context error is returned with the partial map.
func (s *Scheduler) Run(ctx context.Context, segments []domain.SegmentDescriptor, limit int, onProgress ProgressFunc) (map[int]domain.SegmentResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("concurrency limit must be positive, got %d", limit)
	}
	if limit > len(segments) {
		limit = len(segments)
	}
	if err := os.MkdirAll(s.spoolDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}

	prog := NewProgress(len(segments))
	var estimated int64
	for _, seg := range segments {
		estimated += seg.EstimatedBytes
	}
	prog.SetTotalBytes(estimated)

	jobs := make(chan domain.SegmentDescriptor)
	results := make(chan domain.SegmentResult)

	var wg sync.WaitGroup
	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, prog, jobs, results)
		}()
	}

	// Dispatch in manifest order; stop promptly on cancellation.
	go func() {
		defer close(jobs)
		for _, seg := range segments {
			select {
			case <-ctx.Done():
				return
			case jobs <- seg:
			}
		}
	}()

	// Join barrier: results closes only after every worker has exited, so
	// nobody reads the map before all dispatched work has reported.
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[int]domain.SegmentResult, len(segments))
	for res := range results {
		outcomes[res.Index] = res
		if res.OK() {
			prog.MarkCompleted()
		} else {
			prog.MarkFailed()
			s.log.Error("[FAIL] segment %d: %v", res.Index, res.Err)
		}
		if onProgress != nil {
			onProgress(prog.Snapshot())
		}
	}

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// worker drains the job channel until it closes or the run is cancelled.
func (s *Scheduler) worker(ctx context.Context, prog *Progress, jobs <-chan domain.SegmentDescriptor, results chan<- domain.SegmentResult) {
	for seg := range jobs {
		results <- s.fetchSegment(ctx, prog, seg)
	}
}

func (s *Scheduler) fetchSegment(ctx context.Context, prog *Progress, seg domain.SegmentDescriptor) domain.SegmentResult {
	path := filepath.Join(s.spoolDir, fmt.Sprintf("seg_%05d.ts", seg.Index))

	n, err := s.fetcher.FetchToFile(ctx, seg.URL, path, prog.AddBytes)
	if err != nil {
		os.Remove(path)
		return domain.SegmentResult{Index: seg.Index, Err: err}
	}
	return domain.SegmentResult{Index: seg.Index, SpoolPath: path, Bytes: n}
}
