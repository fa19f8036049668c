package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/daemonrun"
	"clipforge/internal/store"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseProjectStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				projects, err := comps.Projects.List(cmd.Context(), limit, filter...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, projects)
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.ID, p.Filename, p.Status, formatDuration(p.DurationSec), p.CreatedAt})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Duration", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum projects to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its clips and assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				detail, err := comps.Projects.Describe(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("project %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, detail)
				}
				printProjectDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <project-id>",
		Short: "Restart a failed project from audio extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				project, err := restartProject(cmd.Context(), comps, args[0])
				switch {
				case errors.Is(err, store.ErrNotFound):
					return fmt.Errorf("project %s not found", args[0])
				case errors.Is(err, store.ErrInvalidTransition):
					return fmt.Errorf("project %s is not failed; only failed projects can be retried", args[0])
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s restarted (%s)\n", project.ID, project.Status)
				return nil
			})
		},
	}
}

func printProjectDetail(out io.Writer, detail *api.ProjectDetail) {
	p := detail.Project
	fmt.Fprintf(out, "Project %s\n", p.ID)
	fmt.Fprintf(out, "  File:     %s\n", p.Filename)
	fmt.Fprintf(out, "  Status:   %s\n", p.Status)
	fmt.Fprintf(out, "  Duration: %s\n", formatDuration(p.DurationSec))
	fmt.Fprintf(out, "  Source:   %s\n", p.SourceURL)
	if p.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:    %s\n", p.ErrorMessage)
	}

	if len(detail.Clips) > 0 {
		rows := make([][]string, 0, len(detail.Clips))
		for _, c := range detail.Clips {
			rows = append(rows, []string{
				c.ID,
				formatSeconds(c.StartSec) + "-" + formatSeconds(c.EndSec),
				c.Title,
				yesNo(c.SnappedToPause),
				c.State,
				c.PreviewURL,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Clip", "Window", "Title", "Snapped", "State", "Preview"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
	}
	if len(detail.Assets) > 0 {
		rows := make([][]string, 0, len(detail.Assets))
		for _, a := range detail.Assets {
			ttl := ""
			if a.TTLDays != nil {
				ttl = strconv.Itoa(*a.TTLDays) + "d"
			}
			rows = append(rows, []string{a.ID, a.Type, ttl, a.URL})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Asset", "Type", "TTL", "URL"}, rows, nil))
	}
}

func parseProjectStatuses(values []string) ([]store.Status, error) {
	var out []store.Status
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		status := store.Status(v)
		known := false
		for _, s := range store.AllStatuses() {
			if s == status {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown project status %q", v)
		}
		out = append(out, status)
	}
	return out, nil
}

func formatDuration(sec *float64) string {
	if sec == nil {
		return "-"
	}
	return formatSeconds(*sec)
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64) + "s"
}
