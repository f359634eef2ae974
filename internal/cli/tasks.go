package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task operations",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksEditCmd(app))
	cmd.AddCommand(newTasksCompleteCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	return cmd
}

func newTasksListCmd(app *appContext) *cobra.Command {
	var q bridge.TaskQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List incomplete tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				tasks, err := b.Tasks.List(cmd.Context(), q)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), tasks, func() {
					printTasks(cmd.OutOrStdout(), tasks)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&q.IncludeCompleted, "all", false, "Include completed tasks")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum tasks (default from defaults.task_limit)")

	return cmd
}

func newTasksShowCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				t, err := b.Tasks.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), t, func() {
					printTasks(cmd.OutOrStdout(), []bridge.Task{t})
					if t.Body != "" {
						fmt.Fprintln(cmd.OutOrStdout(), "")
						fmt.Fprintln(cmd.OutOrStdout(), t.Body)
					}
				})
			})
		},
	}
}

func newTasksCreateCmd(app *appContext) *cobra.Command {
	var subject, body, due, priority string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bridge.TaskInput{Subject: subject, Body: body}
			var err error
			if in.DueDate, err = parseDateFlag("due", due); err != nil {
				return err
			}
			if priority != "" {
				p, ok := bridge.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("unknown priority %q (want low, normal or high)", priority)
				}
				in.Priority = p
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				id, err := b.Tasks.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), map[string]string{"entry_id": id}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", id)
				})
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&body, "body", "", "Notes")
	cmd.Flags().StringVar(&due, "due", "", "Due date (2006-01-02)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, normal or high")

	return cmd
}

func newTasksEditCmd(app *appContext) *cobra.Command {
	var subject, body, due, priority, status string
	var percent int
	var complete bool

	cmd := &cobra.Command{
		Use:   "edit <entry-id>",
		Short: "Change the given fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch bridge.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("subject") {
				patch.Subject = &subject
			}
			if flags.Changed("body") {
				patch.Body = &body
			}
			var err error
			if patch.DueDate, err = parseDateFlag("due", due); err != nil {
				return err
			}
			if flags.Changed("priority") {
				p, ok := bridge.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("unknown priority %q (want low, normal or high)", priority)
				}
				patch.Priority = &p
			}
			if flags.Changed("status") {
				s, ok := bridge.ParseTaskStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (want notstarted, inprogress or complete)", status)
				}
				patch.Status = &s
			}
			if flags.Changed("percent") {
				patch.PercentComplete = &percent
			}
			if flags.Changed("complete") {
				patch.Complete = &complete
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Tasks.Update(cmd.Context(), args[0], patch); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Updated.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&body, "body", "", "Notes")
	cmd.Flags().StringVar(&due, "due", "", "Due date (2006-01-02)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, normal or high")
	cmd.Flags().StringVar(&status, "status", "", "notstarted, inprogress or complete")
	cmd.Flags().IntVar(&percent, "percent", 0, "Percent complete, 0 to 100")
	cmd.Flags().BoolVar(&complete, "complete", false, "Mark complete (or --complete=false to reopen)")

	return cmd
}

func newTasksCompleteCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <entry-id>",
		Short: "Mark a task complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Tasks.Complete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Completed.")
				return nil
			})
		},
	}
}

func newTasksDeleteCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Tasks.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
				return nil
			})
		},
	}
}
