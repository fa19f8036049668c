package scratch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/logging"
)

func TestSweepStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := SweepStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestSweepStaleRemovesOldWorkspaces(t *testing.T) {
	root := t.TempDir()

	old := filepath.Join(root, "preview_render-123")
	if err := os.Mkdir(old, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(old, "clip.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	recent := filepath.Join(root, "audio_extract-456")
	if err := os.Mkdir(recent, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stray := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(stray, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(stray, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := SweepStale(context.Background(), root, time.Hour, nil)
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, keep := range []string{recent, stray} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
}

func TestSweepStaleStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "transcribe-1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	_ = os.Chtimes(dir, oldTime, oldTime)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if result := SweepStale(ctx, root, time.Hour, nil); len(result.Removed) != 0 {
		t.Fatalf("expected no removals after cancel, got %v", result.Removed)
	}
}
