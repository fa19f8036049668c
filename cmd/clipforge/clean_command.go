package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/logging"
	"clipforge/internal/scratch"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove abandoned stage workspaces from the work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result := scratch.SweepStale(cmd.Context(), cfg.Paths.WorkDir, olderThan, logging.NewNop())
			out := cmd.OutOrStdout()
			for _, dir := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", dir)
			}
			for _, failure := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", failure.Path, failure.Error)
			}
			fmt.Fprintf(out, "Removed %d workspace(s)\n", len(result.Removed))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", scratch.DefaultMaxAge, "Only remove workspaces untouched for this long")
	return cmd
}
