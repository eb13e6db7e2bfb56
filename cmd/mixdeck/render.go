package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mixdeck/internal/audio"
	"mixdeck/internal/render"
	"mixdeck/pkg/models"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <mix-id> <output.wav|output.mp3>",
	Short: "Render a mix to a WAV or MP3 file",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		mixID, err := parseID(args[0])
		if err != nil {
			return err
		}
		out := args[1]
		if !filepath.IsAbs(out) && a.cfg.Render.OutputDir != "" {
			out = filepath.Join(a.cfg.Render.OutputDir, out)
		}
		if !audio.CanWrite(out) {
			return fmt.Errorf("%w: no writer for %s", models.ErrInvalidArgument, filepath.Ext(out))
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIO, err)
		}

		renderer := render.NewRenderer(render.Options{
			BlockFrames: a.cfg.Render.BlockFrames,
			Format: audio.Format{
				SampleRate:  a.cfg.Render.SampleRate,
				Channels:    audio.OutputChannels,
				BitrateKbps: a.cfg.Render.BitrateKbps,
			},
			Artist: a.cfg.Render.Artist,
		}, a.logger)
		queue := render.NewQueue(renderer, a.lib.DB(), a.cfg.Render.Workers, a.logger)
		defer queue.Close()

		job, err := queue.Submit(mixID, out)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for !job.Done() {
			select {
			case <-ctx.Done():
				if err := queue.Cancel(job.ID); err != nil {
					return err
				}
				job, _ = queue.Wait(context.Background(), job.ID)
			case <-ticker.C:
				job, _ = queue.Get(job.ID)
				fmt.Fprintf(w, "\r%-60s %3.0f%%", job.Message, job.Progress*100)
			}
		}
		fmt.Fprintln(w)

		switch job.Status {
		case render.StatusCompleted:
			fmt.Fprintf(w, "Rendered %q to %s\n", job.MixName, job.OutputPath)
			return nil
		case render.StatusCancelled:
			return models.ErrCancelled
		default:
			return errors.New(job.Error)
		}
	}),
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
