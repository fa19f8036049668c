package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/daemonrun"
	"clipforge/internal/dispatch"
	"clipforge/internal/intake"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
	"clipforge/internal/store"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var durationHint float64
	var inline bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Submit a video and start its pipeline",
		Long: "Submit a video and start its pipeline.\n\n" +
			"By default the stages are queued for a running daemon. With --inline the\n" +
			"whole pipeline runs in this process and the command returns once previews\n" +
			"are rendered or the project fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open upload: %w", err)
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return fmt.Errorf("stat upload: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			return ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				var failures func() error
				if inline {
					d := dispatch.NewInline(nil)
					if err := comps.Attach(d, transcoderRunner); err != nil {
						return err
					}
					d.SetHandler(comps.Executors)
					failures = d.Err
				} else {
					d := queue.NewDispatcher(comps.Queue, comps.Config.Workflow.MaxDeliveries, logging.NewNop())
					if err := comps.Attach(d, nil); err != nil {
						return err
					}
				}

				project, err := comps.Intake.Accept(cmd.Context(), intake.Upload{
					Reader:       file,
					Filename:     filepath.Base(path),
					Size:         info.Size(),
					DurationHint: durationHint,
				})
				if err != nil {
					return err
				}
				if inline {
					project, err = comps.Store.GetProject(cmd.Context(), project.ID)
					if err != nil {
						return err
					}
				}

				if jsonOut {
					if err := writeJSON(cmd, api.FromProject(project)); err != nil {
						return err
					}
				} else {
					printUploadResult(cmd, project, inline)
				}
				if failures != nil && project.Status == store.StatusFailed {
					return errors.Join(fmt.Errorf("project %s failed: %s", project.ID, project.ErrorMessage), failures())
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&durationHint, "duration-hint", 0, "Known source duration in seconds")
	cmd.Flags().BoolVar(&inline, "inline", false, "Run the pipeline in this process instead of queueing it")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printUploadResult(cmd *cobra.Command, project *store.Project, inline bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project %s\n", project.ID)
	fmt.Fprintf(out, "  Source: %s\n", project.SourceURL)
	fmt.Fprintf(out, "  Status: %s\n", project.Status)
	if !inline {
		fmt.Fprintf(out, "Queued %s; run `clipforge show %s` to follow progress\n", stage.AudioExtract, project.ID)
	}
}

// restartProject re-queues a failed project through the durable queue.
func restartProject(ctx context.Context, comps *daemonrun.Components, id string) (*store.Project, error) {
	d := queue.NewDispatcher(comps.Queue, comps.Config.Workflow.MaxDeliveries, logging.NewNop())
	if err := comps.Attach(d, nil); err != nil {
		return nil, err
	}
	return comps.Intake.Restart(ctx, id)
}
