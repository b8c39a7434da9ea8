package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/vibedesk-engine/internal/bootstrap"
)

func newTasksCmd(flags *rootFlags) *cobra.Command {
	tasks := &cobra.Command{Use: "tasks", Short: "Manage the task list"}

	tasks.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				list, err := app.Workspace.Tasks(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
					return nil
				}
				for _, t := range list {
					check := " "
					if t.Done {
						check = "x"
					}
					date := "-"
					if t.Date != nil {
						date = *t.Date
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t[%s]\t%s\t%s\n", t.ID, check, date, t.Text)
				}
				return nil
			})
		},
	})

	var date string
	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				task, err := app.Workspace.AddTask(ctx, app.User(ctx), strings.Join(args, " "), date)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", task.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "due date YYYY-MM-DD")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a task done or open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				return app.Workspace.ToggleTask(ctx, app.User(ctx), args[0])
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				return app.Workspace.DeleteTask(ctx, app.User(ctx), args[0])
			})
		},
	}

	tasks.AddCommand(add, toggle, remove)
	return tasks
}

func newNotesCmd(flags *rootFlags) *cobra.Command {
	notes := &cobra.Command{
		Use:   "notes",
		Short: "Print the notepad",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				text, err := app.Workspace.Notepad(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	notes.AddCommand(&cobra.Command{
		Use:   "set <text>",
		Short: "Replace the notepad text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Workspace.SetNotepad(ctx, app.User(ctx), strings.Join(args, " ")); err != nil {
					return err
				}
				app.Sync.FlushNotepad()
				return nil
			})
		},
	})
	return notes
}

func newGoalCmd(flags *rootFlags) *cobra.Command {
	goal := &cobra.Command{
		Use:   "goal",
		Short: "Show the weekly focus goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				minutes, err := app.Workspace.WeeklyGoal(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d min\n", minutes)
				return nil
			})
		},
	}

	goal.AddCommand(&cobra.Command{
		Use:   "set <minutes>",
		Short: "Set the weekly focus goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("minutes must be a number: %w", err)
			}
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				return app.Workspace.SetWeeklyGoal(ctx, app.User(ctx), minutes)
			})
		},
	})
	return goal
}
