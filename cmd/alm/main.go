package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "almanac.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alm",
		Short: "Almanac: operations, tasks, calendar and notes",
		Long:  "Almanac keeps tasks, calendar events, wiki pages and journal entries in one store with a search index kept in step.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newOpCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newEventCmd())
	cmd.AddCommand(newWikiCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "alm %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// configFlag registers the -c/--config flag shared by every data command.
func configFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to Almanac config file")
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
