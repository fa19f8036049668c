package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/daemonrun"
	"clipforge/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage the stage task queue",
	}
	cmd.AddCommand(newTasksListCommand(ctx))
	cmd.AddCommand(newTasksStatsCommand(ctx))
	cmd.AddCommand(newTasksRetryCommand(ctx))
	return cmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var project string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseTaskStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				var tasks []*queue.Task
				if project = strings.TrimSpace(project); project != "" {
					tasks, err = comps.Queue.ListForProject(cmd.Context(), project)
				} else {
					tasks, err = comps.Queue.List(cmd.Context(), limit, filter...)
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromTasks(tasks))
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, []string{
						t.ID,
						string(t.Stage),
						t.Args.ProjectID,
						string(t.Status),
						fmt.Sprintf("%d/%d", t.Deliveries, t.MaxDeliveries),
						truncate(t.LastError, 60),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Stage", "Project", "Status", "Deliveries", "Last Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only tasks for this project")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum tasks to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newTasksStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				stats, err := comps.Queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.QueueStats(stats))
				}
				rows := [][]string{
					{string(queue.StatusPending), strconv.Itoa(stats.Pending)},
					{string(queue.StatusRunning), strconv.Itoa(stats.Running)},
					{string(queue.StatusDone), strconv.Itoa(stats.Done)},
					{string(queue.StatusDead), strconv.Itoa(stats.Dead)},
					{"total", strconv.Itoa(stats.Total())},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newTasksRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [task-id...]",
		Short: "Return dead tasks to pending with a fresh delivery budget",
		Long: "Return dead tasks to pending with a fresh delivery budget. With no ids\n" +
			"every dead task is retried. A task whose project already failed runs as a no-op;\n" +
			"use `clipforge retry <project-id>` to restart the project instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				n, err := comps.Queue.RetryDead(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d task(s)\n", n)
				return nil
			})
		},
	}
}

func parseTaskStatuses(values []string) ([]queue.Status, error) {
	var out []queue.Status
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		status := queue.Status(v)
		known := false
		for _, s := range queue.AllStatuses() {
			if s == status {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown task status %q", v)
		}
		out = append(out, status)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
