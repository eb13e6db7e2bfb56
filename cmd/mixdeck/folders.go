package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mixdeck/internal/metadata"
	"mixdeck/internal/scanner"

	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List, add and remove library folders",
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		folders, err := a.lib.Folders.Folders()
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tPATH\tFILES\tSIZE (MB)\tLAST SCANNED")
		for _, f := range folders {
			scanned := "never"
			if !f.LastScannedTime.IsZero() {
				scanned = f.LastScannedTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\t%s\n", f.FolderID, f.Path, f.NumFiles, float64(f.TotalSizeBytes)/(1<<20), scanned)
		}
		return tw.Flush()
	}),
}

var foldersAddCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Register folders with the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		for _, path := range args {
			f, err := a.lib.Folders.AddFolder(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added folder %d: %s\n", f.FolderID, f.Path)
		}
		return nil
	}),
}

var foldersRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a folder and its tracks from the library",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.lib.Folders.RemoveFolder(id)
	}),
}

var (
	scanForce bool
	scanWatch bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan every registered folder for new, changed and missing files",
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newScanner(a)
		all, err := s.ScanAll(ctx, scanForce)
		for _, st := range all {
			fmt.Fprintf(cmd.OutOrStdout(), "Folder %d: %d added, %d updated, %d unchanged, %d missing, %d failed (%s)\n",
				st.FolderID, st.Added, st.Updated, st.Unchanged, st.Missing, st.Failed, st.Elapsed.Round(1e6))
		}
		if err != nil || !scanWatch {
			return err
		}

		w, err := scanner.NewWatcher(s, 0)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	}),
}

func newScanner(a *app) *scanner.Scanner {
	extractor := metadata.NewExtractor(a.cfg.Library.SupportedFormats, a.logger)
	return scanner.New(a.lib, extractor, a.logger, a.cfg.Library.ScanWorkers)
}

func init() {
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "re-read every file even if unchanged")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "keep running and apply file changes as they happen")

	foldersCmd.AddCommand(foldersAddCmd, foldersRemoveCmd)
	rootCmd.AddCommand(foldersCmd, scanCmd)
}
