package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/objectstore"
	"clipforge/internal/pipeline"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcoder"
	"clipforge/internal/transcription"
)

const silenceDiagnostics = `[silencedetect @ 0x1] silence_start: 2.000
size=N/A time=00:00:03.50 bitrate=N/A
[silencedetect @ 0x1] silence_end: 3.500 | silence_duration: 1.500
[silencedetect @ 0x1] silence_start: 94.100
`

type harness struct {
	cfg     *config.Config
	store   *store.Store
	objects *objectstore.FS
	ff      *testsupport.FakeFFmpeg
	deps    pipeline.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFS(cfg.ObjectStore.Root, cfg.ObjectStore.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ff := &testsupport.FakeFFmpeg{DurationSec: 95, SilenceOutput: silenceDiagnostics}
	return &harness{
		cfg:     cfg,
		store:   st,
		objects: objects,
		ff:      ff,
		deps: pipeline.Deps{
			Store:         st,
			Objects:       objects,
			Bucket:        cfg.ObjectStore.Bucket,
			Transcoder:    transcoder.NewFromConfig(cfg, ff.Runner(), nil),
			Transcription: transcription.NewService(transcription.Options{}),
			WorkDir:       cfg.Paths.WorkDir,
		},
	}
}

// executors builds executors that dispatch through d.
func (h *harness) executors(t *testing.T, d stage.Dispatcher) *pipeline.Executors {
	t.Helper()
	deps := h.deps
	deps.Dispatcher = d
	exec, err := pipeline.New(deps)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return exec
}

// inline wires executors to a synchronous dispatcher.
func (h *harness) inline(t *testing.T) *dispatch.Inline {
	t.Helper()
	d := dispatch.NewInline(nil)
	d.SetHandler(h.executors(t, d))
	return d
}

func (h *harness) upload(t *testing.T, filename string) *store.Project {
	t.Helper()
	p := testsupport.NewProject(t, h.store, filename, 0)
	ctx := context.Background()
	if err := h.objects.EnsureBucket(ctx, p.SourceBucket); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	if err := h.objects.Put(ctx, p.SourceBucket, p.SourceKey, strings.NewReader("source-video"), -1, "video/mp4"); err != nil {
		t.Fatalf("Put source: %v", err)
	}
	return p
}

func (h *harness) project(t *testing.T, id string) *store.Project {
	t.Helper()
	p, err := h.store.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return p
}

func (h *harness) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.Paths.WorkDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspaces left behind: %d entries", len(entries))
	}
}

type recorder struct {
	mu    sync.Mutex
	calls []dispatch.Call
}

func (r *recorder) Dispatch(_ context.Context, name stage.Name, args stage.Args) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatch.Call{Stage: name, Args: args})
	return nil
}

func (r *recorder) count(name stage.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Stage == name {
			n++
		}
	}
	return n
}

func TestEndToEndNinetyFiveSecondVideo(t *testing.T) {
	h := newHarness(t)
	d := h.inline(t)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	if err := d.Dispatch(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("stage failures: %v", err)
	}

	audio, err := h.store.LatestAudioAsset(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestAudioAsset: %v", err)
	}
	if dur, ok := audio.MetaFloat("duration_sec"); !ok || math.Abs(dur-95) > 0.01 {
		t.Fatalf("unexpected audio duration meta %v", audio.Meta)
	}
	if audio.Key != p.ID+"/audio/audio.wav" {
		t.Fatalf("unexpected audio key %q", audio.Key)
	}

	tr, err := h.store.LatestTranscript(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestTranscript: %v", err)
	}
	if tr.Provider != "mock" || len(tr.Segments) != 4 {
		t.Fatalf("unexpected transcript: provider=%s segments=%d", tr.Provider, len(tr.Segments))
	}
	if last := tr.Segments[3]; last.StartSec != 90 || last.EndSec != 95 {
		t.Fatalf("unexpected final segment %+v", last)
	}

	silence, err := h.store.LatestSilenceMap(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestSilenceMap: %v", err)
	}
	if len(silence.Silences) != 1 || silence.Silences[0] != (store.Interval{StartSec: 2, EndSec: 3.5}) {
		t.Fatalf("unexpected silences %+v", silence.Silences)
	}

	clips, err := h.store.ListClips(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListClips: %v", err)
	}
	wantWindows := [][2]float64{{0, 30}, {30, 60}, {60, 90}}
	if len(clips) != len(wantWindows) {
		t.Fatalf("expected %d clips, got %d", len(wantWindows), len(clips))
	}
	for i, c := range clips {
		if c.StartSec != wantWindows[i][0] || c.EndSec != wantWindows[i][1] {
			t.Fatalf("clip %d window = [%v,%v], want %v", i, c.StartSec, c.EndSec, wantWindows[i])
		}
		if c.Score != 1.0 || c.Reason != "auto" || c.State != store.ClipSuggested {
			t.Fatalf("unexpected clip fields %+v", c)
		}
		wantURL := h.objects.URLFor("uploads", p.ID+"/previews/"+c.ID+".mp4")
		if c.PreviewURL != wantURL {
			t.Fatalf("clip %d preview url %q, want %q", i, c.PreviewURL, wantURL)
		}
		rc, err := h.objects.Get(ctx, "uploads", objectstore.PreviewKey(p.ID, c.ID))
		if err != nil {
			t.Fatalf("preview object missing: %v", err)
		}
		rc.Close()
	}

	if got := h.project(t, p.ID); got.Status != store.StatusPreviewReady || got.Duration() != 95 {
		t.Fatalf("unexpected final project %+v", got)
	}
	counts := map[stage.Name]int{
		stage.AudioExtract:  1,
		stage.SilenceMap:    1,
		stage.Transcribe:    1,
		stage.HighlightPick: 1,
		stage.PreviewRender: 3,
	}
	for name, want := range counts {
		if got := d.Count(name); got != want {
			t.Fatalf("%s dispatched %d times, want %d", name, got, want)
		}
	}
	if n := h.ff.CountOp("-ss"); n != 3 {
		t.Fatalf("expected 3 preview cuts, got %d", n)
	}
	h.assertWorkDirEmpty(t)
}

func TestAudioExtractRedeliveryResolvesLatestAsset(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := exec.Handle(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
			t.Fatalf("AudioExtract delivery %d: %v", i+1, err)
		}
	}
	assets, err := h.store.ListAssets(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected two audio rows after redelivery, got %d", len(assets))
	}
	latest, err := h.store.LatestAudioAsset(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestAudioAsset: %v", err)
	}
	if latest.ID != assets[1].ID {
		t.Fatalf("latest audio asset %s is not the newest row %s", latest.ID, assets[1].ID)
	}
	if rec.count(stage.Transcribe) != 2 || rec.count(stage.SilenceMap) != 2 {
		t.Fatalf("unexpected dispatches %+v", rec.calls)
	}
	if got := h.project(t, p.ID); got.Status != store.StatusProcessing {
		t.Fatalf("expected processing, got %s", got.Status)
	}
}

func TestAudioExtractSkipsProjectPastProcessing(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	for _, to := range []store.Status{store.StatusProcessing, store.StatusPreviewReady} {
		if err := h.store.TransitionProject(ctx, p.ID, to, ""); err != nil {
			t.Fatalf("transition: %v", err)
		}
	}
	if err := exec.Handle(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("AudioExtract: %v", err)
	}
	if len(rec.calls) != 0 || len(h.ff.Calls()) != 0 {
		t.Fatal("redelivered AudioExtract did work on a preview_ready project")
	}
}

func TestHighlightPickIsDeterministic(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := testsupport.NewProject(t, h.store, "talk.mp4", 120)
	ctx := context.Background()

	segments := []store.Segment{
		{ID: "a", StartSec: 0, EndSec: 10, Text: "short intro"},
		{ID: "b", StartSec: 10, EndSec: 40, Text: "first long part"},
		{ID: "c", StartSec: 40, EndSec: 45, Text: "blip"},
		{ID: "d", StartSec: 45, EndSec: 75, Text: "second long part"},
		{ID: "e", StartSec: 75, EndSec: 95, Text: "medium"},
		{ID: "f", StartSec: 95, EndSec: 125, Text: "runs past the end"},
	}
	if _, err := h.store.CreateTranscript(ctx, store.Transcript{ProjectID: p.ID, Provider: "test", Segments: segments}); err != nil {
		t.Fatalf("CreateTranscript: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := exec.Handle(ctx, stage.HighlightPick, stage.Args{ProjectID: p.ID}); err != nil {
			t.Fatalf("HighlightPick run %d: %v", i+1, err)
		}
	}
	clips, err := h.store.ListClips(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListClips: %v", err)
	}
	want := [][2]float64{{10, 40}, {45, 75}, {95, 120}}
	if len(clips) != len(want) {
		t.Fatalf("expected %d clips after two runs, got %d", len(want), len(clips))
	}
	for i, c := range clips {
		if c.StartSec != want[i][0] || c.EndSec != want[i][1] {
			t.Fatalf("clip %d window [%v,%v], want %v", i, c.StartSec, c.EndSec, want[i])
		}
	}
	if clips[0].Title != "First Long Part" {
		t.Fatalf("unexpected title %q", clips[0].Title)
	}
	if n := rec.count(stage.PreviewRender); n != 6 {
		t.Fatalf("expected previews re-dispatched for unrendered clips, got %d", n)
	}
}

func TestHighlightPickWithoutTranscriptIsNoOp(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := testsupport.NewProject(t, h.store, "talk.mp4", 0)
	ctx := context.Background()

	if err := exec.Handle(ctx, stage.HighlightPick, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("HighlightPick: %v", err)
	}
	if _, err := h.store.CreateTranscript(ctx, store.Transcript{ProjectID: p.ID, Provider: "mock"}); err != nil {
		t.Fatalf("CreateTranscript: %v", err)
	}
	if err := exec.Handle(ctx, stage.HighlightPick, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("HighlightPick on empty transcript: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unexpected dispatches %+v", rec.calls)
	}
	if got := h.project(t, p.ID); got.Status != store.StatusQueued {
		t.Fatalf("status changed to %s", got.Status)
	}
}

type quotaProvider struct {
	mu    sync.Mutex
	calls int
}

func (q *quotaProvider) Name() string { return "stub" }

func (q *quotaProvider) Transcribe(_ context.Context, r io.Reader, _ string) (transcription.Result, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	_, _ = io.Copy(io.Discard, r)
	return transcription.Result{}, &transcription.APIError{StatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota"}
}

func TestTranscribeQuotaFailsProjectWithoutDispatch(t *testing.T) {
	h := newHarness(t)
	provider := &quotaProvider{}
	h.deps.Transcription = transcription.NewService(transcription.Options{Provider: provider, MaxAttempts: 5})
	d := h.inline(t)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	if err := d.Dispatch(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	failures := d.Failures()
	if len(failures) != 1 || failures[0].Stage != stage.Transcribe {
		t.Fatalf("expected one transcribe failure, got %+v", failures)
	}
	if !errors.Is(failures[0].Err, transcription.ErrTranscriptionQuota) {
		t.Fatalf("expected quota error, got %v", failures[0].Err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one provider attempt, got %d", provider.calls)
	}
	got := h.project(t, p.ID)
	if got.Status != store.StatusFailed || got.ErrorMessage != "transcribe: transcription quota or billing issue" {
		t.Fatalf("unexpected project %+v", got)
	}
	if d.Count(stage.HighlightPick) != 0 {
		t.Fatal("HighlightPick dispatched after quota failure")
	}
}

func TestPreviewFailureMarksProjectFailed(t *testing.T) {
	h := newHarness(t)
	h.ff.FailCuts = true
	d := h.inline(t)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	if err := d.Dispatch(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	failures := d.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected only the first preview to fail, got %d failures", len(failures))
	}
	var tErr *transcoder.TranscodeError
	if !errors.As(failures[0].Err, &tErr) || tErr.ExitCode != 1 {
		t.Fatalf("expected TranscodeError, got %v", failures[0].Err)
	}
	got := h.project(t, p.ID)
	if got.Status != store.StatusFailed || !strings.HasPrefix(got.ErrorMessage, "preview_render: ") {
		t.Fatalf("unexpected project %+v", got)
	}
	clips, _ := h.store.ListClips(ctx, p.ID)
	for _, c := range clips {
		if c.PreviewURL != "" {
			t.Fatalf("clip %s references a preview that was never uploaded", c.ID)
		}
	}
	h.assertWorkDirEmpty(t)
}

func TestMissingPrerequisitesAreNoOps(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := testsupport.NewProject(t, h.store, "talk.mp4", 0)
	ctx := context.Background()

	cases := []struct {
		name stage.Name
		args stage.Args
	}{
		{stage.AudioExtract, stage.Args{ProjectID: "prj_missing"}},
		{stage.SilenceMap, stage.Args{ProjectID: p.ID}},
		{stage.Transcribe, stage.Args{ProjectID: p.ID, AssetID: "nope"}},
		{stage.PreviewRender, stage.Args{ProjectID: p.ID, ClipID: "nope"}},
	}
	for _, tc := range cases {
		if err := exec.Handle(ctx, tc.name, tc.args); err != nil {
			t.Fatalf("%s: expected no-op, got %v", tc.name, err)
		}
	}
	if got := h.project(t, p.ID); got.Status != store.StatusQueued {
		t.Fatalf("status changed to %s", got.Status)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unexpected dispatches %+v", rec.calls)
	}
}

func TestFailedProjectIsNotResumed(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	if err := h.store.TransitionProject(ctx, p.ID, store.StatusFailed, "audio_extract: boom"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	for _, name := range []stage.Name{stage.AudioExtract, stage.HighlightPick} {
		if err := exec.Handle(ctx, name, stage.Args{ProjectID: p.ID}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	got := h.project(t, p.ID)
	if got.Status != store.StatusFailed || got.ErrorMessage != "audio_extract: boom" {
		t.Fatalf("failed project was touched: %+v", got)
	}
	if len(h.ff.Calls()) != 0 || len(rec.calls) != 0 {
		t.Fatal("stage did work on a failed project")
	}
}

func TestSourceMissingFailsAudioExtract(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	exec := h.executors(t, rec)
	p := testsupport.NewProject(t, h.store, "talk.mp4", 0)
	ctx := context.Background()

	err := exec.Handle(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID})
	if !errors.Is(err, objectstore.ErrObjectNotFound) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrObjectNotFound marked not found, got %v", err)
	}
	got := h.project(t, p.ID)
	if got.Status != store.StatusFailed || !strings.HasPrefix(got.ErrorMessage, "audio_extract: not found") || !strings.Contains(got.ErrorMessage, "download source") {
		t.Fatalf("unexpected project %+v", got)
	}
	h.assertWorkDirEmpty(t)
}

func TestTranscribeUsesAudioPayloadForDurationHint(t *testing.T) {
	h := newHarness(t)
	h.ff.DurationSec = 0
	// 61 seconds of 16 kHz mono 16-bit PCM plus the WAV header.
	h.ff.AudioBytes = 44 + 61*16000*2
	d := h.inline(t)
	p := h.upload(t, "talk.mp4")
	ctx := context.Background()

	if err := d.Dispatch(ctx, stage.AudioExtract, stage.Args{ProjectID: p.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("stage failures: %v", err)
	}
	tr, err := h.store.LatestTranscript(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestTranscript: %v", err)
	}
	if len(tr.Segments) != 3 {
		t.Fatalf("expected 3 mock segments for 61s, got %d", len(tr.Segments))
	}
	if got := h.project(t, p.ID); got.DurationSec != nil {
		t.Fatalf("probe failed, duration should stay unknown, got %v", *got.DurationSec)
	}
}

func TestUploadedBytesRoundTrip(t *testing.T) {
	h := newHarness(t)
	p := h.upload(t, "talk.mp4")
	rc, err := h.objects.Get(context.Background(), p.SourceBucket, p.SourceKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf.String() != "source-video" {
		t.Fatalf("unexpected source bytes %q", buf.String())
	}
}
