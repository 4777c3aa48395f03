package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		configPath string
		kinds      []string
		opID       uint
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search TERMS...",
		Short: "Search tasks, events, wiki pages, journal entries and operations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := search.Query{Text: strings.Join(args, " "), OperationID: opID, Limit: limit}
			for _, k := range kinds {
				kind, err := search.ParseKind(k)
				if err != nil {
					return err
				}
				q.Kinds = append(q.Kinds, kind)
			}

			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.sync.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tTITLE\tDETAIL")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.Kind, d.EntityID, truncate(d.Title, 40), truncate(d.Secondary, 40))
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "restrict to kinds (task, event, wiki, journal, operation)")
	cmd.Flags().UintVar(&opID, "op", 0, "restrict to an operation")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 50)")
	return cmd
}
