package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/db"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the store and search index",
		Long:  "Creates the store and index databases if needed, migrates every table and seeds calendar sources from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, ep := range []db.Endpoint{db.StoreEndpoint(cfg), db.IndexEndpoint(cfg)} {
		if ep.Driver != "mysql" {
			continue
		}
		adminDB, err := db.ConnectAdmin(ep.Host, ep.Port, ep.User)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, ep.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created database %s\n", ep.Name)
	}

	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()
	fmt.Fprintf(out, "Migrated store (%s)\n", db.StoreEndpoint(cfg))
	fmt.Fprintf(out, "Migrated search index (%s)\n", db.IndexEndpoint(cfg))

	if err := db.SeedCalendarSources(a.store, cfg.CalendarSources, cfg.Calendar.DefaultSource); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded calendar sources (default %q)\n", cfg.Calendar.DefaultSource)
	fmt.Fprintln(out, "Almanac database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the store and search index",
		Long:  "Deletes all Almanac data, then runs db init. Prompts for confirmation unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, force)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, force bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, index := db.StoreEndpoint(cfg), db.IndexEndpoint(cfg)

	if !force {
		in := cmd.InOrStdin()
		if !interactive(in) {
			return fmt.Errorf("refusing to reset without --force: stdin is not a terminal")
		}
		if !confirmReset(cmd, in, store.String(), index.String()) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	for _, ep := range []db.Endpoint{store, index} {
		if err := dropEndpoint(ep); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped %s\n", ep)
	}

	return runDBInit(cmd, configPath)
}

// interactive reports whether in can answer a prompt. Readers that are not
// files, such as test buffers, count as interactive.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}

func dropEndpoint(ep db.Endpoint) error {
	if ep.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(ep.Host, ep.Port, ep.User)
		if err != nil {
			return err
		}
		return db.DropDatabase(adminDB, ep.Name)
	}
	if err := os.Remove(ep.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", ep.Path, err)
	}
	return nil
}

func confirmReset(cmd *cobra.Command, in io.Reader, targets ...string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %s.\n", strings.Join(targets, " and "))
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
