package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workingSetCmd = &cobra.Command{
	Use:     "workingset",
	Aliases: []string{"ws"},
	Short:   "List and edit working sets",
	RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
		sets, err := a.lib.WorkingSets.List()
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tNAME\tTRACKS\tDURATION\tCREATED")
		for _, ws := range sets {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", ws.ID, ws.Name, ws.TrackCount, formatMs(ws.TotalDuration), ws.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var wsQuery queryFlags

var workingSetCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a working set from every track matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		q, err := wsQuery.args()
		if err != nil {
			return err
		}
		ws, err := a.lib.WorkingSets.CreateFromQuery(args[0], q)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created working set %d %q with %d tracks (%s)\n", ws.ID, ws.Name, ws.TrackCount, formatMs(ws.TotalDuration))
		return nil
	}),
}

var workingSetAddCmd = &cobra.Command{
	Use:   "add <id> <track-id>...",
	Short: "Add tracks to a working set",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		wsID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		ws, err := a.lib.WorkingSets.AddTracks(wsID, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Working set %d now has %d tracks\n", ws.ID, ws.TrackCount)
		return nil
	}),
}

var workingSetDropCmd = &cobra.Command{
	Use:   "drop <id> <track-id>...",
	Short: "Remove tracks from a working set",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		wsID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		ws, err := a.lib.WorkingSets.RemoveTracks(wsID, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Working set %d now has %d tracks\n", ws.ID, ws.TrackCount)
		return nil
	}),
}

var workingSetRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a working set",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return a.lib.WorkingSets.Remove(id)
	}),
}

func init() {
	wsQuery.register(workingSetCreateCmd)
	workingSetCmd.AddCommand(workingSetCreateCmd, workingSetAddCmd, workingSetDropCmd, workingSetRemoveCmd)
	rootCmd.AddCommand(workingSetCmd)
}
