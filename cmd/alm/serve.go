package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/dashboard"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long:  "Starts the HTTP API. When reindex.schedule is set, failed index calls are replayed in the background.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Dashboard.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if expr := a.cfg.Reindex.Schedule; expr != "" {
				done := make(chan struct{})
				go func() {
					defer close(done)
					if err := a.reindexer.Schedule(ctx, expr); err != nil {
						cmd.PrintErrf("reindex schedule: %v\n", err)
					}
				}()
				defer func() {
					stop()
					<-done
				}()
			}

			return dashboard.Start(ctx, dashboard.StartOpts{
				App: &dashboard.App{
					DB:         a.store,
					Search:     a.sync,
					Calendar:   a.calendar,
					Tasks:      a.tasks,
					Events:     a.events,
					Operations: a.operations,
				},
				Port: port,
				Out:  cmd.OutOrStdout(),
			})
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port (default from config)")
	return cmd
}
