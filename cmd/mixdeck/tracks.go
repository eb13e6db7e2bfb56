package main

import (
	"fmt"

	"mixdeck/internal/navigation"
	"mixdeck/pkg/models"

	"github.com/spf13/cobra"
)

// queryFlags are shared by every command that selects tracks.
type queryFlags struct {
	search []string
	sort   string
	folder string
	ws     int64
	mix    int64
	page   int
	all    bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&q.search, "search", "s", nil, "search terms matched against title, artist and album")
	cmd.Flags().StringVar(&q.sort, "sort", "", "comma separated columns, prefix with - for descending (e.g. artist,-bpm)")
	cmd.Flags().StringVar(&q.folder, "folder", "", "only tracks under this path")
	cmd.Flags().Int64Var(&q.ws, "ws", 0, "only tracks in this working set")
	cmd.Flags().Int64Var(&q.mix, "mix", 0, "only tracks in this mix, in mix order")
	cmd.Flags().IntVar(&q.page, "page", 0, "result page")
	cmd.Flags().BoolVar(&q.all, "all", false, "disable paging")
}

func (q *queryFlags) args() (models.QueryArgs, error) {
	args := models.NewQueryArgs()
	args.SearchTerms = q.search
	args.FolderPath = q.folder
	if q.ws > 0 {
		args.WorkingSetID = q.ws
	}
	if q.mix > 0 {
		args.MixID = q.mix
	}
	args.Page = q.page
	args.DisablePaging = q.all
	keys, err := parseSort(q.sort)
	if err != nil {
		return args, err
	}
	args.SortOrder = keys
	return args, nil
}

var trackQuery queryFlags

var trackColumns = []models.ColumnID{
	models.ColumnArtist, models.ColumnTitle, models.ColumnAlbum,
	models.ColumnDuration, models.ColumnBPM, models.ColumnCodec,
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Query the catalogue",
	RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
		args, err := trackQuery.args()
		if err != nil {
			return err
		}
		total, err := a.lib.Query.Count(args)
		if err != nil {
			return err
		}
		duration, err := a.lib.Query.TotalDuration(args)
		if err != nil {
			return err
		}

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprint(tw, "ID")
		for _, c := range trackColumns {
			fmt.Fprintf(tw, "\t%s", c.Title())
		}
		fmt.Fprintln(tw)
		shown := 0
		printRow := func(t models.TrackInfo) error {
			shown++
			fmt.Fprintf(tw, "%d", t.TrackID)
			for _, c := range trackColumns {
				fmt.Fprintf(tw, "\t%s", navigation.TrackCellText(t, c))
			}
			if t.IsMissing {
				fmt.Fprint(tw, "\t(missing)")
			}
			fmt.Fprintln(tw)
			return nil
		}

		if args.DisablePaging {
			// page through the store instead of loading everything at once
			args.Page = 0
			if err := a.lib.Query.Stream(cmd.Context(), args, printRow); err != nil {
				return err
			}
		} else {
			tracks, err := a.lib.Query.Query(args)
			if err != nil {
				return err
			}
			for _, t := range tracks {
				printRow(t)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tracks, %s total\n", shown, total, formatMs(duration))
		return nil
	}),
}

func init() {
	trackQuery.register(tracksCmd)
	rootCmd.AddCommand(tracksCmd)
}
