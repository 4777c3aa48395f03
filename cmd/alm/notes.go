package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/journal"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/wiki"
)

func newWikiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiki",
		Short: "Wiki page commands",
	}

	cmd.AddCommand(newWikiAddCmd())
	cmd.AddCommand(newWikiListCmd())
	return cmd
}

func newWikiAddCmd() *cobra.Command {
	var (
		configPath string
		opts       wiki.CreateOpts
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a wiki page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts.Title = args[0]
			page, report, err := a.wikis.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Created wiki page %d: %s\n", page.ID, page.Title)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&opts.Content, "content", "", "page body")
	cmd.Flags().StringVar(&opts.Region, "region", "", "region or area the page belongs to")
	cmd.Flags().UintVar(&opts.OperationID, "op", 0, "operation ID")
	cmd.Flags().BoolVar(&opts.Favorite, "favorite", false, "mark as favorite")
	return cmd
}

func newWikiListCmd() *cobra.Command {
	var (
		configPath string
		opID       uint
		favorites  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List wiki pages of an operation, or favorites",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !favorites && opID == 0 {
				return fmt.Errorf("one of --op or --favorites is required")
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var pages []models.WikiPage
			if favorites {
				pages, err = a.wikis.ListFavorites(cmd.Context())
			} else {
				pages, err = a.wikis.ListByOperation(cmd.Context(), opID)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pages) == 0 {
				fmt.Fprintln(out, "No wiki pages found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tREGION\tFAVORITE")
			for _, p := range pages {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", p.ID, truncate(p.Title, 40), p.Region, p.Favorite)
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().UintVar(&opID, "op", 0, "operation ID")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "list favorite pages")
	return cmd
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Journal commands",
	}

	cmd.AddCommand(newJournalAddCmd())
	cmd.AddCommand(newJournalListCmd())
	return cmd
}

func newJournalAddCmd() *cobra.Command {
	var (
		configPath string
		content    string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Write a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := journal.CreateOpts{Title: args[0], Content: content}
			if date != "" {
				if opts.Date, err = parseWhen(date, a.loc()); err != nil {
					return err
				}
			}
			entry, report, err := a.journal.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Created journal entry %d for %s\n", entry.ID, entry.Date.In(a.loc()).Format(dateLayout))
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&content, "content", "", "entry body")
	cmd.Flags().StringVar(&date, "date", "", "entry date (default now)")
	return cmd
}

func newJournalListCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			now := time.Now()
			entries, err := a.journal.ListRange(cmd.Context(), now.AddDate(0, 0, -days), now.Add(time.Minute))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTITLE")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\n", e.ID, e.Date.In(a.loc()).Format(dateLayout), truncate(e.Title, 60))
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().IntVar(&days, "days", 30, "how many days back to list")
	return cmd
}
