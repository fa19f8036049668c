package intake_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"clipforge/internal/dispatch"
	"clipforge/internal/intake"
	"clipforge/internal/objectstore"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/testsupport"
)

type fixture struct {
	store   *store.Store
	objects *objectstore.FS
	inline  *dispatch.Inline
	svc     *intake.Service
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFS(cfg.ObjectStore.Root, "http://localhost:9000")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	inline := dispatch.NewInline(stage.HandlerFunc(func(context.Context, stage.Name, stage.Args) error { return nil }))
	svc := intake.NewService(st, objects, inline, intake.Options{Bucket: "uploads", MaxBytes: maxBytes})
	return &fixture{store: st, objects: objects, inline: inline, svc: svc}
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, stage.Name, stage.Args) error {
	return errors.New("queue offline")
}

func TestAcceptStoresSourceAndDispatches(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	project, err := f.svc.Accept(ctx, intake.Upload{
		Reader:       strings.NewReader("video-bytes"),
		Filename:     "../../etc/My Talk.mp4",
		Size:         -1,
		DurationHint: 42.5,
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if project.Status != store.StatusQueued {
		t.Fatalf("expected queued project, got %s", project.Status)
	}
	if project.Filename != "My Talk.mp4" {
		t.Fatalf("filename not sanitized: %q", project.Filename)
	}
	wantKey := project.ID + "/source/My Talk.mp4"
	if project.SourceKey != wantKey || project.SourceBucket != "uploads" {
		t.Fatalf("unexpected source location %s/%s", project.SourceBucket, project.SourceKey)
	}
	if project.SourceURL != "http://localhost:9000/uploads/"+wantKey {
		t.Fatalf("unexpected source url %q", project.SourceURL)
	}
	if project.ContentType != "video/mp4" {
		t.Fatalf("expected content type from extension, got %q", project.ContentType)
	}
	if project.Duration() != 42.5 {
		t.Fatalf("duration hint not recorded: %v", project.DurationSec)
	}

	rc, err := f.objects.Get(ctx, "uploads", wantKey)
	if err != nil {
		t.Fatalf("Get source: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "video-bytes" {
		t.Fatalf("source bytes mismatch: %q", data)
	}

	calls := f.inline.Calls()
	if len(calls) != 1 || calls[0].Stage != stage.AudioExtract || calls[0].Args.ProjectID != project.ID {
		t.Fatalf("unexpected dispatches %+v", calls)
	}
}

func TestAcceptRejectsBadInput(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	tests := []struct {
		name string
		up   intake.Upload
	}{
		{"no body", intake.Upload{Filename: "a.mp4"}},
		{"no filename", intake.Upload{Reader: strings.NewReader("x"), Filename: "  "}},
		{"dot filename", intake.Upload{Reader: strings.NewReader("x"), Filename: ".."}},
		{"negative hint", intake.Upload{Reader: strings.NewReader("x"), Filename: "a.mp4", DurationHint: -1}},
		{"declared too large", intake.Upload{Reader: strings.NewReader("x"), Filename: "a.mp4", Size: 5}},
		{"streamed too large", intake.Upload{Reader: bytes.NewReader(make([]byte, 64)), Filename: "a.mp4", Size: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Accept(ctx, tt.up); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	projects, err := f.store.ListProjects(ctx, 0)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("rejected uploads must not create projects, got %d", len(projects))
	}
	if len(f.inline.Calls()) != 0 {
		t.Fatal("rejected uploads must not dispatch")
	}
}

func TestAcceptAtSizeLimit(t *testing.T) {
	f := newFixture(t, 4)
	if _, err := f.svc.Accept(context.Background(), intake.Upload{
		Reader:   strings.NewReader("abcd"),
		Filename: "clip.mov",
		Size:     -1,
	}); err != nil {
		t.Fatalf("upload at the limit should pass: %v", err)
	}
}

func TestAcceptFailsProjectWhenDispatchFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFS(cfg.ObjectStore.Root, "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	svc := intake.NewService(st, objects, failingDispatcher{}, intake.Options{})

	project, err := svc.Accept(context.Background(), intake.Upload{Reader: strings.NewReader("x"), Filename: "a.mp4", Size: 1})
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if project == nil {
		t.Fatal("expected the created project alongside the error")
	}
	got, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Status != store.StatusFailed || !strings.HasPrefix(got.ErrorMessage, "audio_extract: dispatch failed") {
		t.Fatalf("unexpected project %+v", got)
	}
}

func TestRestartRequeuesFailedProject(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	project := testsupport.NewProject(t, f.store, "talk.mp4", 60)

	if _, err := f.svc.Restart(ctx, project.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for queued project, got %v", err)
	}
	if err := f.store.TransitionProject(ctx, project.ID, store.StatusFailed, "transcribe: boom"); err != nil {
		t.Fatalf("TransitionProject: %v", err)
	}

	restarted, err := f.svc.Restart(ctx, project.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if restarted.Status != store.StatusQueued || restarted.ErrorMessage != "" {
		t.Fatalf("unexpected restarted project %+v", restarted)
	}
	if n := f.inline.Count(stage.AudioExtract); n != 1 {
		t.Fatalf("expected one AudioExtract dispatch, got %d", n)
	}

	if _, err := f.svc.Restart(ctx, "prj_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"clip.mp4", "clip.mp4", true},
		{"/abs/path/clip.mp4", "clip.mp4", true},
		{`C:\Users\me\clip.mp4`, "clip.mp4", true},
		{"bad\x00name.mp4", "badname.mp4", true},
		{"", "", false},
		{"/", "", false},
		{"dir/..", "", false},
	}
	for _, tt := range tests {
		got, err := intake.SanitizeFilename(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Fatalf("SanitizeFilename(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Fatalf("SanitizeFilename(%q) should fail, got %q", tt.in, got)
		}
	}
}
