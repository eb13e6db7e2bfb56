package main

import (
	"fmt"
	"strings"

	"mixdeck/internal/cache"
	"mixdeck/internal/navigation"
	"mixdeck/pkg/models"

	"github.com/spf13/cobra"
)

var (
	browseSearch []string
	browseSort   string
	browseLimit  int
)

var browseCmd = &cobra.Command{
	Use:   "browse [path]",
	Short: "Walk the navigation tree, e.g. \"Mixes/Night Drive\"",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
		pageCache := cache.NewPageCache(a.cfg.PageCacheTTL())
		defer pageCache.Stop()

		root := navigation.NewRoot(navigation.Env{
			Library: a.lib,
			Cache:   pageCache,
			Logger:  a.logger,
		})
		defer root.Release()

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		node := root.Get(path)
		if node == nil {
			return fmt.Errorf("%w: no view named %q", models.ErrNotFound, path)
		}
		defer node.Release()

		if len(browseSearch) > 0 {
			node.SetSearchTerms(browseSearch)
		}
		if browseSort != "" {
			keys, err := parseSort(browseSort)
			if err != nil {
				return err
			}
			node.SetSortOrder(keys)
		}

		node.PrepareToShowData()
		defer node.DataNoLongerShowing()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s  [%s]\n", node.Name(), joinActions(node.NodeActions()))

		if node.HasChildren() {
			for _, child := range node.Children() {
				fmt.Fprintf(w, "  %s/\n", child.Name())
				child.Release()
			}
		}

		cols := node.Columns()
		rows := node.NumberOfRows()
		if len(cols) == 0 || rows == 0 {
			if msg := node.LastError(); msg != "" {
				return fmt.Errorf("%s", msg)
			}
			return nil
		}

		tw := newTable(w)
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, strings.ToUpper(c.Title()))
		}
		fmt.Fprintln(tw, "\tACTIONS")
		shown := rows
		if browseLimit > 0 {
			shown = min(rows, browseLimit)
		}
		for row := range shown {
			for i, c := range cols {
				if i > 0 {
					fmt.Fprint(tw, "\t")
				}
				fmt.Fprint(tw, node.CellText(row, c))
			}
			fmt.Fprintf(tw, "\t%s\n", joinActions(node.RowActions(row)))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if shown < rows {
			fmt.Fprintf(w, "... %d more rows\n", rows-shown)
		}
		return nil
	}),
}

func joinActions(actions []navigation.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

func init() {
	browseCmd.Flags().StringSliceVarP(&browseSearch, "search", "s", nil, "search terms for track views")
	browseCmd.Flags().StringVar(&browseSort, "sort", "", "comma separated columns, prefix with - for descending")
	browseCmd.Flags().IntVarP(&browseLimit, "limit", "n", 50, "maximum rows to print, 0 for all")
	rootCmd.AddCommand(browseCmd)
}
