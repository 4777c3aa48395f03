package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/almanac/internal/bucket"
	"github.com/zulandar/almanac/internal/models"
	"github.com/zulandar/almanac/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskDoneCmd())
	cmd.AddCommand(newTaskRmCmd())
	cmd.AddCommand(newTaskSyncCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath  string
		opID        uint
		description string
		priority    string
		due         string
		repeat      string
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Long:  "Creates a task under an operation. A task with a due date gets a calendar event; --repeat makes it a recurrence template.",
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
			t, report, err := a.tasks.Create(cmd.Context(), task.CreateOpts{
				Title:       args[0],
				Description: description,
				OperationID: opID,
				Priority:    models.Priority(priority),
				DueDate:     dueDate,
				Recurrence:  repeat,
			})
			if t != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s\n", t.ID, t.Title)
			}
			printWarnings(cmd.ErrOrStderr(), report)
			return err
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().UintVar(&opID, "op", 0, "owning operation ID (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low (default medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().StringVar(&repeat, "repeat", "", "recurrence rule, e.g. \"@weekly\" or \"0 9 * * 1\"")
	cmd.MarkFlagRequired("op")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		opID       uint
		status     string
		priority   string
		when       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists tasks ordered by due date. --when filters by date bucket: any, today, tomorrow, this-week, this-month, overdue, no-due-date, has-due-date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := bucket.ParseFilter(when)
			if err != nil {
				return err
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			tasks, err := a.tasks.List(cmd.Context(), task.ListFilters{
				OperationID: opID,
				Status:      models.TaskStatus(status),
				Priority:    models.Priority(priority),
				Bucket:      filter,
				Now:         time.Now(),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE\tOP")
			for _, t := range tasks {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", t.ID, truncate(t.Title, 40), t.Status, t.Priority, formatDate(t.DueDate, a.loc()), t.OperationID)
			}
			return w.Flush()
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().UintVar(&opID, "op", 0, "filter by operation ID")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&when, "when", "", "filter by date bucket")
	return cmd
}

func newTaskEditCmd() *cobra.Command {
	var (
		configPath string
		opts       task.UpdateOpts
		title      string
		status     string
		priority   string
		due        string
		repeat     string
	)

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task",
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

			flags := cmd.Flags()
			if flags.Changed("title") {
				opts.Title = &title
			}
			if flags.Changed("status") {
				s := models.TaskStatus(status)
				opts.Status = &s
			}
			if flags.Changed("priority") {
				p := models.Priority(priority)
				opts.Priority = &p
			}
			if flags.Changed("repeat") {
				opts.Recurrence = &repeat
			}
			if flags.Changed("due") {
				if opts.DueDate, err = optionalWhen(due, a.loc()); err != nil {
					return err
				}
			}

			t, report, err := a.tasks.Update(cmd.Context(), id, opts)
			if t != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s (due %s)\n", t.ID, t.Title, formatDate(t.DueDate, a.loc()))
			}
			printWarnings(cmd.ErrOrStderr(), report)
			return err
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&status, "status", "", "todo, in_progress or done")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().BoolVar(&opts.ClearDueDate, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&repeat, "repeat", "", "recurrence rule; empty removes it")
	return cmd
}

func newTaskDoneCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "done ID",
		Short: "Complete a task",
		Long:  "Marks a task done. Completing a recurring task creates its next instance.",
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

			done, next, report, err := a.tasks.CompleteAndAdvance(cmd.Context(), id, time.Now())
			out := cmd.OutOrStdout()
			if done != nil {
				fmt.Fprintf(out, "Completed task %d: %s\n", done.ID, done.Title)
			}
			if next != nil {
				fmt.Fprintf(out, "Next occurrence: task %d due %s\n", next.ID, formatDate(next.DueDate, a.loc()))
			}
			printWarnings(cmd.ErrOrStderr(), report)
			return err
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}

func newTaskRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a task and its calendar event",
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

			report, err := a.tasks.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), report)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}

func newTaskSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync ID",
		Short: "Bring a task's calendar event in line with the task",
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

			res, err := a.calendar.SyncTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), res.Report)
			out := cmd.OutOrStdout()
			if res.Event != nil {
				fmt.Fprintf(out, "Task %d: event %d %s\n", id, res.Event.ID, res.Action)
			} else {
				fmt.Fprintf(out, "Task %d: %s\n", id, res.Action)
			}
			return nil
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
