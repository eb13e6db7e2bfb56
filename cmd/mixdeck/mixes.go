package main

import (
	"fmt"

	"mixdeck/pkg/models"

	"github.com/spf13/cobra"
)

var mixCmd = &cobra.Command{
	Use:   "mix",
	Short: "List, build and edit mixes",
	RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
		mixes, err := a.lib.Mixes.List()
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tNAME\tTRACKS\tDURATION\tSAVED")
		for _, m := range mixes {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", m.MixID, m.Name, m.NumberOfTracks, formatMs(m.TotalDuration), m.Timestamp.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var mixShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a mix's timeline",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		mix, err := a.lib.Mixes.Get(id)
		if err != nil {
			return err
		}
		tracks, err := a.lib.Mixes.MixTracks(id)
		if err != nil {
			return err
		}
		ids := make([]int64, len(tracks))
		for i, mt := range tracks {
			ids[i] = mt.TrackID
		}
		infos, err := a.lib.Tracks(ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]models.TrackInfo, len(infos))
		for _, t := range infos {
			byID[t.TrackID] = t
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d tracks, %s)\n", mix.Name, mix.NumberOfTracks, formatMs(mix.TotalDuration))
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "#\tSTART\tTRACK\tFADE IN\tFADE OUT\tCUTOFF\tXFADE")
		for _, mt := range tracks {
			t := byID[mt.TrackID]
			fmt.Fprintf(tw, "%d\t%s\t%s - %s\t%d-%d\t%d-%d\t%d\t%d\n",
				mt.OrderInMix, formatMs(mt.MixStartTime), t.Artist, t.Title,
				mt.FadeInStart, mt.FadeInEnd, mt.FadeOutStart, mt.FadeOutEnd, mt.CutoffTime, mt.CrossfadeDuration)
		}
		return tw.Flush()
	}),
}

var (
	autoQuery     queryFlags
	autoCrossfade int64
)

var mixAutoCmd = &cobra.Command{
	Use:   "auto <name>",
	Short: "Build a mix from a query with evenly crossfaded tracks",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		q, err := autoQuery.args()
		if err != nil {
			return err
		}
		q.DisablePaging = true
		tracks, err := a.lib.Query.Query(q)
		if err != nil {
			return err
		}
		mix, _, err := a.lib.Mixes.CreateAndSaveAutoMix(tracks, models.NewMix(args[0]), autoCrossfade)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created mix %d %q with %d tracks (%s)\n", mix.MixID, mix.Name, mix.NumberOfTracks, formatMs(mix.TotalDuration))
		return nil
	}),
}

var mixRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a mix",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.lib.Mixes.Rename(id, args[1])
	}),
}

var mixDropCmd = &cobra.Command{
	Use:   "drop <id> <order>",
	Short: "Remove the track at a position and close the gap",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var order int
		if _, err := fmt.Sscanf(args[1], "%d", &order); err != nil {
			return fmt.Errorf("%w: invalid position %q", models.ErrInvalidArgument, args[1])
		}
		mix, err := a.lib.Mixes.RemoveTrackAt(id, order)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mix %d now has %d tracks (%s)\n", mix.MixID, mix.NumberOfTracks, formatMs(mix.TotalDuration))
		return nil
	}),
}

var mixRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a mix",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.lib.Mixes.Remove(id)
	}),
}

func init() {
	autoQuery.register(mixAutoCmd)
	mixAutoCmd.Flags().Int64Var(&autoCrossfade, "crossfade", 0, "crossfade in milliseconds (default from config)")
	mixCmd.AddCommand(mixShowCmd, mixAutoCmd, mixRenameCmd, mixDropCmd, mixRemoveCmd)
	rootCmd.AddCommand(mixCmd)
}
