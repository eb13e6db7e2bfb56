package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mixdeck/internal/background"
	"mixdeck/internal/scanner"
	"mixdeck/pkg/models"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run background rescans, BPM analysis and the folder watcher until interrupted",
	RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
		if !a.cfg.Background.Enabled {
			return fmt.Errorf("%w: background processing is disabled in the config", models.ErrInvalidArgument)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newScanner(a)
		if a.cfg.Library.ScanOnStartup {
			if _, err := s.ScanAll(ctx, false); err != nil {
				if errors.Is(err, models.ErrCancelled) {
					return nil
				}
				a.logger.WithError(err).Warn("Startup scan failed")
			}
		}

		if a.cfg.Library.WatchForChanges {
			w, err := scanner.NewWatcher(s, 0)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Close()
		}

		svc := background.NewService(a.logger, a.cfg.BackgroundWait())
		svc.Register(scanner.NewRescanTask(s, a.cfg.RescanInterval()))
		if a.cfg.Background.AnalyseBPM {
			svc.Register(background.NewBPMTask(a.lib.DB(), a.cfg.BPMDelay(), a.logger))
		}
		svc.Start()
		a.logger.WithField("tasks", svc.Tasks()).Info("Background worker running")

		<-ctx.Done()
		a.logger.Info("Shutting down background worker...")
		svc.Stop()
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
