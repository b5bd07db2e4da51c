package mux

import (
	"context"
	"fmt"
	"os/exec"

	"vlget/internal/infra/logger"
)

// Muxer shells out to mkvmerge to remux the acquired video and optional
// subtitle track into a single MKV container.
type Muxer struct {
	Binary string
	log    *logger.Logger
}

// Options describes the tracks going into one container.
type Options struct {
	AudioLang    string // language tag for track 1 of the video input
	SubtitlePath string // optional SRT to attach
	SubtitleLang string
}

// New locates mkvmerge on PATH. Muxing is optional; callers treat an
// error here as "deliver the raw video file instead".
func New(log *logger.Logger) (*Muxer, error) {
	bin, err := exec.LookPath("mkvmerge")
	if err != nil {
		return nil, fmt.Errorf("mkvmerge not found in PATH: %w", err)
	}
	return &Muxer{Binary: bin, log: log}, nil
}

// Command builds the mkvmerge argument list without running it.
func (m *Muxer) Command(videoPath, outputPath string, opts Options) []string {
	args := []string{"-o", outputPath}
	if opts.AudioLang != "" {
		args = append(args, "--language", "1:"+opts.AudioLang)
	}
	args = append(args, videoPath)
	if opts.SubtitlePath != "" {
		if opts.SubtitleLang != "" {
			args = append(args, "--language", "0:"+opts.SubtitleLang)
		}
		args = append(args, opts.SubtitlePath)
	}
	return args
}

// Run muxes videoPath into outputPath. mkvmerge's combined output is
// surfaced in the error on failure since it explains itself well.
func (m *Muxer) Run(ctx context.Context, videoPath, outputPath string, opts Options) error {
	args := m.Command(videoPath, outputPath, opts)
	m.log.Debug("running %s %v", m.Binary, args)

	cmd := exec.CommandContext(ctx, m.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mkvmerge failed: %w: %s", err, out)
	}
	return nil
}
