package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vlget/internal/domain"
	"vlget/internal/engine"
	"vlget/internal/fetch"
	"vlget/internal/infra/config"
	"vlget/internal/infra/logger"
	"vlget/internal/mux"
)

type fakeResolver struct {
	meta    domain.ContentMetadata
	seasons []domain.Season
	direct  string
}

func (f *fakeResolver) ExtractPath(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "/movies/") && !strings.Contains(rawURL, "/shows/") {
		return "", errors.New("bad url")
	}
	return "/x", nil
}

func (f *fakeResolver) FetchMetadata(ctx context.Context, path string) (domain.ContentMetadata, error) {
	return f.meta, nil
}

func (f *fakeResolver) ManifestURL(ctx context.Context, contentID string) (string, error) {
	return "https://cdn/" + contentID + "/master.m3u8", nil
}

func (f *fakeResolver) Captions(ctx context.Context, contentID string) ([]domain.Caption, error) {
	return []domain.Caption{{Language: "Bengali", URL: "https://cdn/sub.srt"}}, nil
}

func (f *fakeResolver) AudioLanguages(ctx context.Context, contentID string) ([]string, error) {
	return []string{"Bengali"}, nil
}

func (f *fakeResolver) Seasons(ctx context.Context, seriesID string) ([]domain.Season, error) {
	return f.seasons, nil
}

func (f *fakeResolver) DirectURL(ctx context.Context, manifestURL string) string {
	return f.direct
}

// fakeAcquirer writes a stand-in video file and reports 1080p quality.
type fakeAcquirer struct {
	err   error
	descs []domain.StreamDescriptor
}

func (f *fakeAcquirer) Acquire(ctx context.Context, desc domain.StreamDescriptor, outPath string, onProgress engine.ProgressFunc) (domain.AcquisitionResult, error) {
	f.descs = append(f.descs, desc)
	if f.err != nil {
		return domain.AcquisitionResult{}, f.err
	}
	if err := os.WriteFile(outPath, []byte("video"), 0644); err != nil {
		return domain.AcquisitionResult{}, err
	}
	if onProgress != nil {
		onProgress(engine.Snapshot{Completed: 1, Total: 1, Bytes: 5, TotalBytes: 5})
	}
	return domain.AcquisitionResult{OutputPath: outPath, Success: true, Quality: "1920x1080", BytesWritten: 5}, nil
}

// fakeMuxer concatenates its inputs so the test can assert what went in.
type fakeMuxer struct {
	lastOpts mux.Options
	err      error
}

func (f *fakeMuxer) Run(ctx context.Context, videoPath, outputPath string, opts mux.Options) error {
	f.lastOpts = opts
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		Download: config.DownloadConfig{
			OutDir:      filepath.Join(base, "out"),
			TempDir:     filepath.Join(base, "tmp"),
			Concurrency: 4,
		},
		Naming: config.NamingConfig{
			Movie:        "{title}.{year}.{quality}.{tag}.mkv",
			SeriesFolder: "{title}.S{season}.{tag}",
			SeriesFile:   "{title}.S{season}E{episode}.{quality}.{tag}.mkv",
			Tag:          "WEB-DL",
		},
		Lang: config.LangConfig{
			Subtitles: map[string]string{"bengali": "ben"},
			Audio:     map[string]string{"bengali": "ben"},
		},
	}
}

func subtitleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nhello\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFetch() *fetch.Client {
	return fetch.New(fetch.Options{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, logger.Discard())
}

func TestBuildJobsMovie(t *testing.T) {
	res := &fakeResolver{meta: domain.ContentMetadata{
		Title: "Detective Charlie", ContentType: "Movie", ContentID: "m1", ReleaseYear: "2022",
	}}
	p := New(testConfig(t), res, &fakeAcquirer{}, nil, testFetch(), logger.Discard())

	jobs, err := p.BuildJobs(context.Background(), "https://example.tv/movies/detective-charlie", domain.SelectOptions{Height: 720})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Descriptor.Kind != domain.KindSegmented {
		t.Errorf("kind = %s", job.Descriptor.Kind)
	}
	if job.Descriptor.ManifestURL != "https://cdn/m1/master.m3u8" {
		t.Errorf("manifest = %q", job.Descriptor.ManifestURL)
	}
	if job.Descriptor.PreferredHeight != 720 {
		t.Errorf("height = %d", job.Descriptor.PreferredHeight)
	}
	if job.NameValues.Title != "Detective.Charlie" || job.NameValues.Tag != "WEB-DL" {
		t.Errorf("name values = %+v", job.NameValues)
	}
	if job.AudioLang != "ben" {
		t.Errorf("audio lang = %q", job.AudioLang)
	}
	if len(job.Subtitles) != 1 || job.Subtitles[0].Language != "ben" {
		t.Errorf("subtitles = %+v", job.Subtitles)
	}
}

func TestBuildJobsRawPrefersDirect(t *testing.T) {
	res := &fakeResolver{
		meta:   domain.ContentMetadata{Title: "M", ContentType: "Movie", ContentID: "m1"},
		direct: "https://cdn/mezz/m1.mp4",
	}
	p := New(testConfig(t), res, &fakeAcquirer{}, nil, testFetch(), logger.Discard())

	jobs, err := p.BuildJobs(context.Background(), "https://example.tv/movies/m", domain.SelectOptions{Raw: true})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if jobs[0].Descriptor.Kind != domain.KindDirect {
		t.Errorf("kind = %s, want direct", jobs[0].Descriptor.Kind)
	}
	if jobs[0].Descriptor.DirectURL != "https://cdn/mezz/m1.mp4" {
		t.Errorf("direct = %q", jobs[0].Descriptor.DirectURL)
	}
}

func TestBuildJobsSeriesSelection(t *testing.T) {
	res := &fakeResolver{
		meta: domain.ContentMetadata{Title: "Some Show", ContentType: "SERIES", ContentID: "s1", ReleaseYear: "2021"},
		seasons: []domain.Season{
			{Episodes: []domain.Episode{
				{Title: "One", ContentID: "e1", ManifestURL: "https://cdn/e1.m3u8"},
				{Title: "Two", ContentID: "e2", ManifestURL: "https://cdn/e2.m3u8"},
				{Title: "Three", ContentID: "e3", ManifestURL: "https://cdn/e3.m3u8"},
			}},
			{Episodes: []domain.Episode{
				{Title: "S2One", ContentID: "e4", ManifestURL: "https://cdn/e4.m3u8"},
			}},
		},
	}
	cfg := testConfig(t)
	p := New(cfg, res, &fakeAcquirer{}, nil, testFetch(), logger.Discard())

	jobs, err := p.BuildJobs(context.Background(), "https://example.tv/shows/some-show", domain.SelectOptions{
		Seasons: "1", Episodes: "1,3",
	})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].NameValues.Episode != 1 || jobs[1].NameValues.Episode != 3 {
		t.Errorf("episodes = %d, %d", jobs[0].NameValues.Episode, jobs[1].NameValues.Episode)
	}
	wantDir := filepath.Join(cfg.Download.OutDir, "Some.Show.S01.WEB-DL")
	if jobs[0].OutputDir != wantDir {
		t.Errorf("output dir = %q, want %q", jobs[0].OutputDir, wantDir)
	}
	if jobs[1].NameValues.EpisodeTitle != "Three" {
		t.Errorf("episode title = %q", jobs[1].NameValues.EpisodeTitle)
	}
}

func TestBuildJobsSkipsEpisodesWithoutManifest(t *testing.T) {
	res := &fakeResolver{
		meta: domain.ContentMetadata{Title: "Show", ContentType: "series", ContentID: "s1"},
		seasons: []domain.Season{
			{Episodes: []domain.Episode{
				{Title: "Good", ContentID: "e1", ManifestURL: "https://cdn/e1.m3u8"},
				{Title: "Broken", ContentID: "e2"},
			}},
		},
	}
	p := New(testConfig(t), res, &fakeAcquirer{}, nil, testFetch(), logger.Discard())

	jobs, err := p.BuildJobs(context.Background(), "https://example.tv/shows/show", domain.SelectOptions{})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].NameValues.EpisodeTitle != "Good" {
		t.Errorf("jobs = %d, want the one with a manifest", len(jobs))
	}
}

func runnableJob(t *testing.T, p *Pipeline, subURL string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:           "job1",
		Title:        "Detective Charlie",
		OutputDir:    p.cfg.Download.OutDir,
		NameTemplate: p.cfg.Naming.Movie,
		NameValues:   domain.NameValues{Title: "Detective.Charlie", Year: "2022", Tag: "WEB-DL"},
		Descriptor:   domain.StreamDescriptor{Kind: domain.KindSegmented, ManifestURL: "https://cdn/m.m3u8"},
		AudioLang:    "ben",
	}
	if subURL != "" {
		job.Subtitles = []domain.SubtitleTrack{{Language: "ben", URL: subURL}}
	}
	return job
}

func TestRunMuxesAndCleansUp(t *testing.T) {
	cfg := testConfig(t)
	muxer := &fakeMuxer{}
	srv := subtitleServer(t)
	p := New(cfg, &fakeResolver{}, &fakeAcquirer{}, muxer, testFetch(), logger.Discard())

	job := runnableJob(t, p, srv.URL+"/sub.srt")
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(cfg.Download.OutDir, "Detective.Charlie.2022.1080p.WEB-DL.mkv")
	if job.OutputPath != want {
		t.Errorf("output = %q, want %q", job.OutputPath, want)
	}
	if data, err := os.ReadFile(want); err != nil || string(data) != "video" {
		t.Errorf("output content = %q, %v", data, err)
	}
	if muxer.lastOpts.AudioLang != "ben" || muxer.lastOpts.SubtitleLang != "ben" {
		t.Errorf("mux options = %+v", muxer.lastOpts)
	}
	if muxer.lastOpts.SubtitlePath == "" {
		t.Error("subtitle not passed to muxer")
	}

	// Temp video and subtitle are gone after a successful run.
	leftovers, err := os.ReadDir(cfg.Download.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp dir still holds %d files", len(leftovers))
	}
	if job.Quality != "1080p" {
		t.Errorf("quality = %q", job.Quality)
	}
}

func TestRunWithoutMuxerDeliversRawVideo(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, &fakeResolver{}, &fakeAcquirer{}, nil, testFetch(), logger.Discard())

	job := runnableJob(t, p, "")
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(cfg.Download.OutDir, "Detective.Charlie.2022.1080p.WEB-DL.mp4")
	if job.OutputPath != want {
		t.Errorf("output = %q, want %q", job.OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("raw video missing: %v", err)
	}
}

func TestRunSurfacesAcquireFailure(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, &fakeResolver{}, &fakeAcquirer{err: errors.New("no stream")}, &fakeMuxer{}, testFetch(), logger.Discard())

	job := runnableJob(t, p, "")
	if err := p.Run(context.Background(), job); err == nil {
		t.Fatal("expected acquire failure to surface")
	}
	if entries, _ := os.ReadDir(cfg.Download.OutDir); len(entries) != 0 {
		t.Error("failed run produced output files")
	}
}

func TestRunSubtitleFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	muxer := &fakeMuxer{}
	srv := subtitleServer(t)
	p := New(cfg, &fakeResolver{}, &fakeAcquirer{}, muxer, testFetch(), logger.Discard())

	job := runnableJob(t, p, srv.URL+"/sub.srt")
	srv.Close() // force the subtitle fetch to fail

	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if muxer.lastOpts.SubtitlePath != "" {
		t.Error("muxer received a subtitle that failed to download")
	}
}
