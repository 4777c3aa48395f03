package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/event"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Calendar event commands",
	}

	cmd.AddCommand(newEventAddCmd())
	cmd.AddCommand(newEventListCmd())
	cmd.AddCommand(newEventRmCmd())
	return cmd
}

func newEventAddCmd() *cobra.Command {
	var (
		configPath  string
		start       string
		end         string
		location    string
		description string
		opID        uint
		allDay      bool
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := event.CreateOpts{
				Title:       args[0],
				Description: description,
				Location:    location,
				AllDay:      allDay,
				OperationID: opID,
			}
			if opts.Start, err = parseWhen(start, a.loc()); err != nil {
				return err
			}
			if end != "" {
				if opts.End, err = parseWhen(end, a.loc()); err != nil {
					return err
				}
			}

			ev, report, err := a.events.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Created event %d: %s\n", ev.ID, ev.Title)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&start, "start", "", "start time (required)")
	cmd.Flags().StringVar(&end, "end", "", "end time (default: start)")
	cmd.Flags().StringVar(&location, "location", "", "where the event happens")
	cmd.Flags().StringVar(&description, "description", "", "event description")
	cmd.Flags().UintVar(&opID, "op", 0, "operation ID")
	cmd.Flags().BoolVar(&allDay, "all-day", false, "all-day event")
	cmd.MarkFlagRequired("start")
	return cmd
}

func newEventListCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events in a date range",
		Long:  "Lists events overlapping [from, to). The range defaults to today plus --days days.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			now := time.Now().In(a.loc())
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc())
			if from != "" {
				if start, err = parseWhen(from, a.loc()); err != nil {
					return err
				}
			}
			end := start.AddDate(0, 0, days)
			if to != "" {
				if end, err = parseWhen(to, a.loc()); err != nil {
					return err
				}
			}

			events, err := a.events.ListRange(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No events found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tTASK")
			for _, ev := range events {
				linked := "-"
				if ev.TaskID != nil {
					linked = fmt.Sprint(*ev.TaskID)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", ev.ID, truncate(ev.Title, 40), formatDate(&ev.Start, a.loc()), formatDate(&ev.End, a.loc()), linked)
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&from, "from", "", "range start (default today)")
	cmd.Flags().StringVar(&to, "to", "", "range end")
	cmd.Flags().IntVar(&days, "days", 7, "range length when --to is not given")
	return cmd
}

func newEventRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.events.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted event %d\n", id)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
