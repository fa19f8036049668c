package scratch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/logging"
)

// DefaultMaxAge is how long an abandoned stage workspace is kept before the
// daemon sweeps it at startup.
const DefaultMaxAge = 24 * time.Hour

// SweepResult lists removed workspaces and the ones that could not be removed.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// SweepStale removes workspace directories under workDir whose modification
// time is older than maxAge. Workspaces are normally deleted by the stage that
// created them; leftovers come from crashed or killed workers.
func SweepStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	var result SweepResult
	if logger == nil {
		logger = logging.NewNop()
	}

	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return result
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: workDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
			logger.Warn("failed to remove stale workspace",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
		logger.Info("removed stale workspace",
			logging.String("path", dir),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}
	return result
}
