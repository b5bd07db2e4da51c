package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"vlget/internal/domain"
	"vlget/internal/engine"
	"vlget/internal/fetch"
	"vlget/internal/infra/logger"
	"vlget/internal/manifest"
)

// ErrManifestUnavailable tags failures of the manifest fetch/parse stage.
// They are the only segmented-path errors that trigger the direct-file
// fallback; failures after scheduling has started never do.
var ErrManifestUnavailable = errors.New("manifest unavailable")

// Orchestrator runs one acquisition from resolved descriptor to a single
// local media file. It holds no state across runs.
type Orchestrator struct {
	fetch       *fetch.Client
	tempDir     string
	concurrency int
	log         *logger.Logger
}

func New(fc *fetch.Client, tempDir string, concurrency int, log *logger.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Orchestrator{fetch: fc, tempDir: tempDir, concurrency: concurrency, log: log}
}

// Acquire picks the segmented or direct path for desc, runs it to
// completion and yields outPath. Failure and cancellation leave no output
// file behind; cancellation is reported as domain.ErrCancelled.
func (o *Orchestrator) Acquire(ctx context.Context, desc domain.StreamDescriptor, outPath string, onProgress engine.ProgressFunc) (domain.AcquisitionResult, error) {
	res := domain.AcquisitionResult{OutputPath: outPath}

	var err error
	switch desc.Kind {
	case domain.KindDirect:
		err = o.direct(ctx, desc.DirectURL, outPath, &res, onProgress)
	case domain.KindSegmented:
		err = o.segmented(ctx, desc, outPath, &res, onProgress)
		if err != nil && errors.Is(err, ErrManifestUnavailable) && desc.DirectURL != "" {
			o.log.Warn("segmented path unavailable (%v), falling back to direct file", err)
			err = o.direct(ctx, desc.DirectURL, outPath, &res, onProgress)
		}
	default:
		err = fmt.Errorf("unknown stream kind %q", desc.Kind)
	}

	if err != nil {
		os.Remove(outPath)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		return res, err
	}

	res.Success = true
	return res, nil
}

func (o *Orchestrator) segmented(ctx context.Context, desc domain.StreamDescriptor, outPath string, res *domain.AcquisitionResult, onProgress engine.ProgressFunc) error {
	segments, quality, err := o.loadSegments(ctx, desc)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	res.Quality = quality

	spool, err := os.MkdirTemp(o.tempDir, "segments-")
	if err != nil {
		return fmt.Errorf("failed to create spool dir: %w", err)
	}
	defer os.RemoveAll(spool)

	limit := desc.Concurrency
	if limit <= 0 {
		limit = o.concurrency
	}

	o.log.Info("downloading %d segments (concurrency %d)", len(segments), limit)

	sched := engine.NewScheduler(o.fetch, spool, o.log)
	results, runErr := sched.Run(ctx, segments, limit, onProgress)
	if runErr != nil {
		return runErr
	}

	for i := range segments {
		if r, ok := results[i]; !ok || !r.OK() {
			res.FailedSegments = append(res.FailedSegments, i)
		}
	}

	if err := engine.NewAssembler(o.log).Assemble(results, len(segments), outPath); err != nil {
		return err
	}

	for _, r := range results {
		res.BytesWritten += r.Bytes
	}
	return nil
}

// loadSegments fetches and parses the manifest, drilling through a master
// playlist to the selected rendition's segment listing.
func (o *Orchestrator) loadSegments(ctx context.Context, desc domain.StreamDescriptor) ([]domain.SegmentDescriptor, string, error) {
	content, err := o.fetch.Fetch(ctx, desc.ManifestURL)
	if err != nil {
		return nil, "", err
	}
	base, err := url.Parse(desc.ManifestURL)
	if err != nil {
		return nil, "", err
	}

	pl, err := manifest.Decode(content, base)
	if err != nil {
		return nil, "", err
	}

	var quality string
	if pl.Master {
		v, err := manifest.SelectionPolicy{PreferredHeight: desc.PreferredHeight}.Select(pl.Variants)
		if err != nil {
			return nil, "", err
		}
		quality = v.Resolution
		o.log.Info("selected rendition %s @ %d Kbps", v.Resolution, v.Bandwidth/1000)

		content, err = o.fetch.Fetch(ctx, v.URI)
		if err != nil {
			return nil, "", err
		}
		vbase, err := url.Parse(v.URI)
		if err != nil {
			return nil, "", err
		}
		pl, err = manifest.Decode(content, vbase)
		if err != nil {
			return nil, "", err
		}
		if pl.Master {
			return nil, "", fmt.Errorf("variant %s resolved to another master playlist", v.URI)
		}
	}

	return pl.Segments, quality, nil
}

func (o *Orchestrator) direct(ctx context.Context, rawURL, outPath string, res *domain.AcquisitionResult, onProgress engine.ProgressFunc) error {
	res.Quality = "RAW"
	res.FailedSegments = nil

	prog := engine.NewProgress(1)
	if total, _, err := o.fetch.Probe(ctx, rawURL); err == nil && total > 0 {
		prog.SetTotalBytes(total)
	}

	n, err := o.fetch.FetchToFile(ctx, rawURL, outPath, func(d int64) {
		prog.AddBytes(d)
		if onProgress != nil {
			onProgress(prog.Snapshot())
		}
	})
	if err != nil {
		return err
	}

	prog.MarkCompleted()
	if onProgress != nil {
		onProgress(prog.Snapshot())
	}
	res.BytesWritten = n
	return nil
}
