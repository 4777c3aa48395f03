package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/search"
)

func newReindexCmd() *cobra.Command {
	var (
		configPath string
		kinds      []string
		replay     bool
		schedule   bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index or replay failed index calls",
		Long: `Without flags, purges and rebuilds the search index from the store.
--replay retries index calls recorded as failed. --schedule keeps replaying on
the reindex.schedule cron expression until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd, configPath, kinds, replay, schedule)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "kinds to rebuild (default all)")
	cmd.Flags().BoolVar(&replay, "replay", false, "replay failed index calls instead of rebuilding")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "replay on the configured schedule until interrupted")
	return cmd
}

func runReindex(cmd *cobra.Command, configPath string, kindNames []string, replay, schedule bool) error {
	out := cmd.OutOrStdout()

	var kinds []search.Kind
	for _, k := range kindNames {
		kind, err := search.ParseKind(k)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	switch {
	case schedule:
		if a.cfg.Reindex.Schedule == "" {
			return fmt.Errorf("reindex.schedule is not set in %s", configPath)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(out, "Replaying failed index calls on %q. Press Ctrl+C to stop.\n", a.cfg.Reindex.Schedule)
		return a.reindexer.Schedule(ctx, a.cfg.Reindex.Schedule)

	case replay:
		res, err := a.reindexer.Replay(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Replayed failed index calls: %d resolved, %d failed\n", res.Resolved, res.Failed)
		return nil
	}

	job, err := a.reindexer.Rebuild(cmd.Context(), kinds...)
	if job != nil {
		fmt.Fprintf(out, "Reindex job %d %s: %d documents, %d failures\n", job.ID, job.Status, job.Documents, job.Failures)
	}
	return err
}
