package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"mixdeck/internal/config"
	"mixdeck/internal/library"
	"mixdeck/internal/logging"
	"mixdeck/pkg/models"

	// registers the .mp3 writer
	_ "mixdeck/internal/audio/mp3enc"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mixdeck",
	Short:         "mixdeck catalogues an audio library and renders DJ mixes from it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $MIXDECK_CONFIG or ./mixdeck.toml)")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every command opens: configuration, logger and the library.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	lib       *library.Library
	logCloser io.Closer
}

func openApp() (*app, error) {
	// .env is optional; existing variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}

	path := configPath
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	lib, err := library.Open(cfg.Database.Path, logger, library.Options{
		DefaultCrossfadeMs: cfg.Library.DefaultCrossfadeMs,
		DefaultFadeMs:      cfg.Library.DefaultFadeMs,
	})
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return &app{cfg: cfg, logger: logger, lib: lib, logCloser: closer}, nil
}

func (a *app) Close() {
	if err := a.lib.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing library")
	}
	a.logCloser.Close()
}

// withApp wraps a command body with openApp and Close.
func withApp(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a, cmd, args)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", models.ErrInvalidArgument, s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseSort turns "artist,-bpm" into sort keys; a leading '-' sorts descending.
func parseSort(spec string) ([]models.SortKey, error) {
	if spec == "" {
		return nil, nil
	}
	var keys []models.SortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		asc := true
		if strings.HasPrefix(part, "-") {
			asc = false
			part = part[1:]
		}
		col, ok := columnByName(part)
		if !ok {
			return nil, fmt.Errorf("%w: unknown sort column %q", models.ErrInvalidArgument, part)
		}
		keys = append(keys, models.SortKey{Column: col, Ascending: asc})
	}
	return keys, nil
}

func columnByName(name string) (models.ColumnID, bool) {
	for c := models.ColumnTitle; c <= models.ColumnLastScanned; c++ {
		title := strings.ReplaceAll(c.Title(), " ", "")
		if strings.EqualFold(title, strings.ReplaceAll(name, "_", "")) {
			return c, true
		}
	}
	switch strings.ToLower(name) {
	case "track", "tracknumber":
		return models.ColumnTrackNumber, true
	case "order":
		return models.ColumnOrderInMix, true
	}
	return 0, false
}

func formatMs(ms int64) string {
	s := ms / 1000
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
