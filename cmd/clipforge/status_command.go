package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/daemonrun"
	"clipforge/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, storage and queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Daemon", colorize)
			lines = append(lines, daemonStatusLine(cfg, colorize))
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, r := range preflight.RunAll(cfg) {
				lines = append(lines, resultLine(r, colorize))
			}

			failed := false
			err = ctx.withComponents(cmd.Context(), func(comps *daemonrun.Components) error {
				checks := []preflight.Result{
					preflight.CheckDatabase(cmd.Context(), comps.Store.DB(), cfg.Database.Driver),
					preflight.CheckObjectStore(cmd.Context(), comps.Objects, cfg.ObjectStore.Bucket),
				}
				if !offline {
					checks = append(checks, preflight.CheckTranscription(cmd.Context(), cfg.Transcription))
				}
				for _, r := range checks {
					lines = append(lines, resultLine(r, colorize))
					failed = failed || !r.Passed
				}
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Queue", colorize)...)
				lines = append(lines, queueLines(cmd.Context(), comps, colorize)...)
				return nil
			})
			if err != nil {
				lines = append(lines, renderStatusLine("Database", statusError, err.Error(), colorize))
			}
			printLines(out, lines)
			if failed {
				return fmt.Errorf("one or more checks failed")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that reach external providers")
	return cmd
}

func daemonStatusLine(cfg *config.Config, colorize bool) string {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return renderStatusLine("Daemon", statusWarn, "lock check failed: "+err.Error(), colorize)
	}
	if locked {
		_ = lock.Unlock()
		return renderStatusLine("Daemon", statusWarn, "not running (queued work waits for `clipforge daemon`)", colorize)
	}
	return renderStatusLine("Daemon", statusOK, "running, api "+cfg.API.Bind, colorize)
}

func queueLines(ctx context.Context, comps *daemonrun.Components, colorize bool) []string {
	stats, err := comps.Queue.Stats(ctx)
	if err != nil {
		return []string{renderStatusLine("Tasks", statusError, err.Error(), colorize)}
	}
	lines := []string{
		renderStatusLine("Pending", statusInfo, strconv.Itoa(stats.Pending), colorize),
		renderStatusLine("Running", statusInfo, strconv.Itoa(stats.Running), colorize),
		renderStatusLine("Done", statusInfo, strconv.Itoa(stats.Done), colorize),
	}
	deadKind := statusOK
	if stats.Dead > 0 {
		deadKind = statusWarn
	}
	return append(lines, renderStatusLine("Dead", deadKind, strconv.Itoa(stats.Dead), colorize))
}

func resultLine(r preflight.Result, colorize bool) string {
	if r.Passed {
		return renderStatusLine(r.Name, statusOK, r.Detail, colorize)
	}
	return renderStatusLine(r.Name, statusError, r.Detail, colorize)
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
