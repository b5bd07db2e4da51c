// Package pipeline drives one job from resolved content page to muxed
// output file. It owns the resolve -> acquire -> subtitle -> mux sequence
// and is the queue manager's runner.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vlget/internal/domain"
	"vlget/internal/engine"
	"vlget/internal/fetch"
	"vlget/internal/infra/config"
	"vlget/internal/infra/logger"
	"vlget/internal/mux"
	"vlget/internal/naming"
)

// Resolver maps site URLs and content ids to streams, captions and series
// listings. viewlift.Client satisfies it.
type Resolver interface {
	ExtractPath(rawURL string) (string, error)
	FetchMetadata(ctx context.Context, contentPath string) (domain.ContentMetadata, error)
	ManifestURL(ctx context.Context, contentID string) (string, error)
	Captions(ctx context.Context, contentID string) ([]domain.Caption, error)
	AudioLanguages(ctx context.Context, contentID string) ([]string, error)
	Seasons(ctx context.Context, seriesID string) ([]domain.Season, error)
	DirectURL(ctx context.Context, manifestURL string) string
}

// Acquirer runs one stream to a local file. acquire.Orchestrator
// satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, desc domain.StreamDescriptor, outPath string, onProgress engine.ProgressFunc) (domain.AcquisitionResult, error)
}

// Muxer remuxes the acquired video into its final container. A nil Muxer
// means mkvmerge is unavailable and the raw video is delivered instead.
type Muxer interface {
	Run(ctx context.Context, videoPath, outputPath string, opts mux.Options) error
}

type Pipeline struct {
	cfg      *config.Config
	resolver Resolver
	acquirer Acquirer
	muxer    Muxer
	fetch    *fetch.Client
	log      *logger.Logger

	// OnProgress, when set, observes every snapshot of the running job.
	OnProgress func(job *domain.Job, s engine.Snapshot)
}

func New(cfg *config.Config, resolver Resolver, acquirer Acquirer, muxer Muxer, fc *fetch.Client, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		acquirer: acquirer,
		muxer:    muxer,
		fetch:    fc,
		log:      log,
	}
}

// BuildJobs resolves a pasted page URL into ready-to-queue jobs, one per
// selected movie or episode.
func (p *Pipeline) BuildJobs(ctx context.Context, pageURL string, opts domain.SelectOptions) ([]*domain.Job, error) {
	contentPath, err := p.resolver.ExtractPath(pageURL)
	if err != nil {
		return nil, err
	}
	meta, err := p.resolver.FetchMetadata(ctx, contentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", contentPath, err)
	}
	p.log.Info("resolved %q (%s, %s)", meta.Title, meta.ContentType, meta.ContentID)

	tag := opts.Tag
	if tag == "" {
		tag = p.cfg.Naming.Tag
	}

	if strings.EqualFold(meta.ContentType, "series") {
		return p.buildSeriesJobs(ctx, meta, opts, tag)
	}
	return p.buildMovieJob(ctx, meta, opts, tag)
}

func (p *Pipeline) buildMovieJob(ctx context.Context, meta domain.ContentMetadata, opts domain.SelectOptions, tag string) ([]*domain.Job, error) {
	manifestURL, err := p.resolver.ManifestURL(ctx, meta.ContentID)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		Title:        meta.Title,
		OutputDir:    p.cfg.Download.OutDir,
		NameTemplate: p.cfg.Naming.Movie,
		NameValues: domain.NameValues{
			Title: naming.Sanitize(meta.Title),
			Year:  meta.ReleaseYear,
			Tag:   tag,
		},
	}
	if err := p.fillStream(ctx, job, meta.ContentID, manifestURL, opts); err != nil {
		return nil, err
	}
	return []*domain.Job{job}, nil
}

func (p *Pipeline) buildSeriesJobs(ctx context.Context, meta domain.ContentMetadata, opts domain.SelectOptions, tag string) ([]*domain.Job, error) {
	seasons, err := p.resolver.Seasons(ctx, meta.ContentID)
	if err != nil {
		return nil, err
	}
	if len(seasons) == 0 {
		return nil, fmt.Errorf("series %s has no seasons", meta.ContentID)
	}

	safeTitle := naming.Sanitize(meta.Title)
	selSeasons, err := ParseSelection(opts.Seasons, len(seasons))
	if err != nil {
		return nil, fmt.Errorf("bad season selection: %w", err)
	}

	var jobs []*domain.Job
	for _, si := range selSeasons {
		eps := seasons[si-1].Episodes
		selEps, err := ParseSelection(opts.Episodes, len(eps))
		if err != nil {
			return nil, fmt.Errorf("bad episode selection for season %d: %w", si, err)
		}

		folder := naming.Render(p.cfg.Naming.SeriesFolder, naming.Values{
			Title: safeTitle, Season: si, Tag: tag,
		})
		seasonDir := filepath.Join(p.cfg.Download.OutDir, folder)

		for _, ei := range selEps {
			ep := eps[ei-1]
			if ep.ManifestURL == "" {
				p.log.Warn("skipping S%02dE%02d %q: no manifest", si, ei, ep.Title)
				continue
			}
			job := &domain.Job{
				Title:        fmt.Sprintf("%s S%02dE%02d", meta.Title, si, ei),
				OutputDir:    seasonDir,
				NameTemplate: p.cfg.Naming.SeriesFile,
				NameValues: domain.NameValues{
					Title:        safeTitle,
					Year:         meta.ReleaseYear,
					Season:       si,
					Episode:      ei,
					EpisodeTitle: naming.Sanitize(ep.Title),
					Tag:          tag,
				},
			}
			if err := p.fillStream(ctx, job, ep.ContentID, ep.ManifestURL, opts); err != nil {
				p.log.Warn("skipping %s: %v", job.Title, err)
				continue
			}
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("selection matched no downloadable episodes")
	}
	return jobs, nil
}

// fillStream attaches the stream descriptor, captions and audio language
// to a half-built job.
func (p *Pipeline) fillStream(ctx context.Context, job *domain.Job, contentID, manifestURL string, opts domain.SelectOptions) error {
	directURL := p.resolver.DirectURL(ctx, manifestURL)

	kind := domain.KindSegmented
	if opts.Raw && directURL != "" {
		kind = domain.KindDirect
	}
	job.Descriptor = domain.StreamDescriptor{
		Kind:            kind,
		ManifestURL:     manifestURL,
		DirectURL:       directURL,
		PreferredHeight: opts.Height,
		Concurrency:     p.cfg.Download.Concurrency,
	}

	caps, err := p.resolver.Captions(ctx, contentID)
	if err != nil {
		p.log.Warn("no captions for %s: %v", contentID, err)
	}
	for _, cap := range caps {
		if cap.URL == "" {
			continue
		}
		job.Subtitles = append(job.Subtitles, domain.SubtitleTrack{
			Language: p.subtitleLang(cap.Language),
			URL:      cap.URL,
		})
	}

	langs, err := p.resolver.AudioLanguages(ctx, contentID)
	if err != nil {
		p.log.Warn("no audio languages for %s: %v", contentID, err)
	}
	if len(langs) > 0 {
		job.AudioLang = p.audioLang(langs[0])
	}
	return nil
}

// Run executes one job. It satisfies queue.Runner; terminal status and
// persistence belong to the queue manager.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) error {
	job.StartedAt = time.Now()

	if err := os.MkdirAll(p.cfg.Download.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	tempVideo := filepath.Join(p.cfg.Download.TempDir, job.ID+".mp4")

	result, err := p.acquirer.Acquire(ctx, job.Descriptor, tempVideo, func(s engine.Snapshot) {
		job.BytesWritten.Store(uint64(s.Bytes))
		job.TotalBytes.Store(uint64(s.TotalBytes))
		if p.OnProgress != nil {
			p.OnProgress(job, s)
		}
	})
	if err != nil {
		return err
	}
	defer os.Remove(tempVideo)

	job.FailedSegments = result.FailedSegments
	job.Quality = naming.QualityLabel(result.Quality)
	if job.Quality == "" {
		job.Quality = "1080p"
	}

	subPath, subLang := p.downloadSubtitle(ctx, job)
	if subPath != "" {
		defer os.Remove(subPath)
	}

	vals := naming.Values{
		Title:        job.NameValues.Title,
		Year:         job.NameValues.Year,
		Season:       job.NameValues.Season,
		Episode:      job.NameValues.Episode,
		EpisodeTitle: job.NameValues.EpisodeTitle,
		Quality:      job.Quality,
		Tag:          job.NameValues.Tag,
		AudioLang:    job.AudioLang,
	}
	finalName := naming.Render(job.NameTemplate, vals)

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	outPath := filepath.Join(job.OutputDir, finalName)

	if p.muxer == nil {
		// No mkvmerge: deliver the raw video under the final name.
		outPath = strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".mp4"
		if err := os.Rename(tempVideo, outPath); err != nil {
			return fmt.Errorf("failed to move output: %w", err)
		}
		job.OutputPath = outPath
		return nil
	}

	job.Status = domain.StatusMuxing
	p.log.Info("muxing %s", finalName)
	if err := p.muxer.Run(ctx, tempVideo, outPath, mux.Options{
		AudioLang:    job.AudioLang,
		SubtitlePath: subPath,
		SubtitleLang: subLang,
	}); err != nil {
		os.Remove(outPath)
		return err
	}

	job.OutputPath = outPath
	return nil
}

// downloadSubtitle fetches the first usable subtitle track. Subtitles are
// best effort; failures degrade to a video-only container.
func (p *Pipeline) downloadSubtitle(ctx context.Context, job *domain.Job) (path, lang string) {
	for _, sub := range job.Subtitles {
		path := filepath.Join(p.cfg.Download.TempDir, fmt.Sprintf("%s.%s.srt", job.ID, sub.Language))
		if _, err := p.fetch.FetchToFile(ctx, sub.URL, path, nil); err != nil {
			p.log.Warn("subtitle download failed (%s): %v", sub.Language, err)
			continue
		}
		return path, sub.Language
	}
	return "", ""
}

func (p *Pipeline) subtitleLang(label string) string {
	raw := strings.ToLower(label)
	if mapped, ok := p.cfg.Lang.Subtitles[raw]; ok {
		return mapped
	}
	if len(raw) > 3 {
		return raw[:3]
	}
	return raw
}

func (p *Pipeline) audioLang(label string) string {
	raw := strings.ToLower(label)
	if mapped, ok := p.cfg.Lang.Audio[raw]; ok {
		return mapped
	}
	return raw
}
