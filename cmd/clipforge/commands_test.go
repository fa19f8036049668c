package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/api"
	"clipforge/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithTranscriptionKey("sk-secret", ""))
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked: %s", out)
	}
	requireContains(t, out, redacted)
}

func TestUploadInlineRendersPreviews(t *testing.T) {
	env := setupCLITestEnv(t)
	useFakeFFmpeg(t, &testsupport.FakeFFmpeg{DurationSec: 95})
	video := writeVideo(t, env.baseDir, "talk.mp4")

	out, _, err := runCLI(t, []string{"upload", "--inline", video}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "Status: preview_ready")
	id := projectIDFrom(t, out)

	out, _, err = runCLI(t, []string{"projects"}, env.configPath)
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "95s")

	out, _, err = runCLI(t, []string{"show", "--json", id}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var detail api.ProjectDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	if detail.Project.Status != "preview_ready" || len(detail.Clips) != 3 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	for _, c := range detail.Clips {
		if c.PreviewURL == "" {
			t.Fatalf("clip missing preview %+v", c)
		}
	}
}

func TestUploadQueuesFirstStage(t *testing.T) {
	env := setupCLITestEnv(t)
	video := writeVideo(t, env.baseDir, "queued.mov")

	out, _, err := runCLI(t, []string{"upload", "--duration-hint", "12.5", video}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "Status: queued")
	id := projectIDFrom(t, out)

	out, _, err = runCLI(t, []string{"tasks", "list", "--project", id}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "audio_extract")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"tasks", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks stats: %v", err)
	}
	var stats map[string]int
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["pending"] != 1 {
		t.Fatalf("expected one pending task, got %v", stats)
	}

	out, _, err = runCLI(t, []string{"show", id}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "12.5s")
}

func TestRetryRejectsActiveProject(t *testing.T) {
	env := setupCLITestEnv(t)
	video := writeVideo(t, env.baseDir, "clip.mp4")
	out, _, err := runCLI(t, []string{"upload", video}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	id := projectIDFrom(t, out)

	_, _, err = runCLI(t, []string{"retry", id}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "only failed projects") {
		t.Fatalf("expected rejected retry, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"retry", "prj_missing"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestRetryRestartsFailedProject(t *testing.T) {
	env := setupCLITestEnv(t)
	useFakeFFmpeg(t, &testsupport.FakeFFmpeg{DurationSec: 95, FailCuts: true})
	video := writeVideo(t, env.baseDir, "broken.mp4")

	out, _, err := runCLI(t, []string{"upload", "--inline", video}, env.configPath)
	if err == nil {
		t.Fatal("expected inline upload to report the failed project")
	}
	id := projectIDFrom(t, out)
	requireContains(t, out, "Status: failed")

	out, _, err = runCLI(t, []string{"retry", id}, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "restarted (queued)")
}

func TestShowUnknownProject(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"show", "prj_nope"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "sqlite reachable")
	requireContains(t, out, "Pending:")
}

func TestTasksRetryWithoutDeadTasks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"tasks", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks retry: %v", err)
	}
	requireContains(t, out, "Retried 0 task(s)")
}

func TestProjectsRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"projects", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCleanRemovesStaleWorkspaces(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.cfg.Paths.WorkDir, "preview_render-1")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	out, _, err := runCLI(t, []string{"clean"}, env.configPath)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "Removed 1 workspace(s)")
}
