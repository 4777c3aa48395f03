package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/operation"
)

func newOpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "op",
		Short: "Operation management commands",
	}

	cmd.AddCommand(newOpAddCmd())
	cmd.AddCommand(newOpListCmd())
	cmd.AddCommand(newOpDoneCmd())
	cmd.AddCommand(newOpRmCmd())
	return cmd
}

func newOpAddCmd() *cobra.Command {
	var (
		configPath string
		purpose    string
		priority   string
		status     string
		due        string
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			dueDate, err := optionalWhen(due, a.loc())
			if err != nil {
				return err
			}
			op, report, err := a.operations.Create(cmd.Context(), operation.CreateOpts{
				Name:     args[0],
				Purpose:  purpose,
				Priority: models.Priority(priority),
				Status:   status,
				DueDate:  dueDate,
			})
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Created operation %d: %s\n", op.ID, op.Name)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&purpose, "purpose", "", "what the operation is for")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low (default medium)")
	cmd.Flags().StringVar(&status, "status", "", "planned, active, completed or cancelled (default active)")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	return cmd
}

func newOpListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ops, err := a.operations.List(cmd.Context(), status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ops) == 0 {
				fmt.Fprintln(out, "No operations found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPRIORITY\tDUE")
			for _, op := range ops {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", op.ID, truncate(op.Name, 40), op.Status, op.Priority, formatDate(op.DueDate, a.loc()))
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newOpDoneCmd() *cobra.Command {
	var (
		configPath string
		outcome    string
	)

	cmd := &cobra.Command{
		Use:   "done ID",
		Short: "Mark an operation completed",
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

			op, report, err := a.operations.Complete(cmd.Context(), id, outcome)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Completed operation %d: %s\n", op.ID, op.Name)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&outcome, "outcome", "", "how the operation turned out")
	return cmd
}

func newOpRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete an operation with its tasks, pages and events",
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

			report, err := a.operations.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted operation %d\n", id)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
