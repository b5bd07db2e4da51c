package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vlget/internal/domain"
)

func newGetCommand(configFlag *string) *cobra.Command {
	var (
		seasons  string
		episodes string
		height   int
		raw      bool
		tag      string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download a movie or series from its content page URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configFlag)
			if err != nil {
				return err
			}
			defer rt.Close()

			if outDir != "" {
				rt.cfg.Download.OutDir = outDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobs, err := rt.pipe.BuildJobs(ctx, args[0], domain.SelectOptions{
				Seasons:  seasons,
				Episodes: episodes,
				Height:   height,
				Raw:      raw,
				Tag:      tag,
			})
			if err != nil {
				return err
			}
			for _, job := range jobs {
				rt.queue.Add(job)
			}
			fmt.Printf("Queued %d item(s)\n", len(jobs))

			renderer := newProgressRenderer()
			rt.pipe.OnProgress = renderer.observe
			rt.queue.RunPending(ctx)
			renderer.finish()

			var failed int
			for _, job := range rt.queue.Jobs() {
				switch job.Status {
				case domain.StatusCompleted:
					fmt.Printf("  done: %s\n", job.OutputPath)
				case domain.StatusCancelled:
					fmt.Printf("  cancelled: %s\n", job.Title)
				default:
					failed++
					fmt.Printf("  failed: %s (%s)\n", job.Title, job.Error)
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d item(s) failed", failed, len(jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&seasons, "seasons", "s", "", "Season selection, e.g. 1, 1,3 or all")
	cmd.Flags().StringVarP(&episodes, "episodes", "e", "", "Episode selection, e.g. 2, 1-3 or all")
	cmd.Flags().IntVarP(&height, "resolution", "r", 0, "Preferred rendition height, e.g. 720 or 1080")
	cmd.Flags().BoolVar(&raw, "raw", false, "Prefer the mezzanine MP4 when one exists")
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag for output names")
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "Override the configured output directory")

	return cmd
}
