package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"clipforge/internal/objectstore"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/transcoder"
	"clipforge/internal/transcription"
)

func TestSelectHighlightsStableByDuration(t *testing.T) {
	segments := []store.Segment{
		{ID: "seg_0", StartSec: 0, EndSec: 30},
		{ID: "seg_1", StartSec: 30, EndSec: 60},
		{ID: "seg_2", StartSec: 60, EndSec: 90},
		{ID: "seg_3", StartSec: 90, EndSec: 95},
	}
	for run := 0; run < 3; run++ {
		got := SelectHighlights(segments, 3)
		ids := make([]string, 0, len(got))
		for _, s := range got {
			ids = append(ids, s.ID)
		}
		if strings.Join(ids, ",") != "seg_0,seg_1,seg_2" {
			t.Fatalf("run %d: unexpected selection %v", run, ids)
		}
	}
	if segments[3].ID != "seg_3" {
		t.Fatal("input slice was reordered")
	}
}

func TestSelectHighlightsEdgeCases(t *testing.T) {
	if got := SelectHighlights(nil, 3); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	one := []store.Segment{{ID: "x", StartSec: 0, EndSec: 1}}
	if got := SelectHighlights(one, 3); len(got) != 1 {
		t.Fatalf("expected one highlight, got %d", len(got))
	}
	if got := SelectHighlights(one, 0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
	mixed := []store.Segment{
		{ID: "short", StartSec: 0, EndSec: 2},
		{ID: "long", StartSec: 2, EndSec: 20},
		{ID: "mid", StartSec: 20, EndSec: 30},
	}
	if got := SelectHighlights(mixed, 2); got[0].ID != "long" || got[1].ID != "mid" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestClipTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"segment zero", "Segment Zero"},
		{"  the quick   brown fox ", "The Quick Brown Fox"},
		{"one two three four five six seven eight nine ten", "One Two Three Four Five Six Seven Eight…"},
		{"keep NASA caps", "Keep NASA Caps"},
	}
	for _, tt := range tests {
		if got := ClipTitle(tt.in); got != tt.want {
			t.Errorf("ClipTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampWindow(t *testing.T) {
	tests := []struct {
		seg        store.Segment
		duration   float64
		start, end float64
		ok         bool
	}{
		{store.Segment{StartSec: 0, EndSec: 30}, 0, 0, 30, true},
		{store.Segment{StartSec: 90, EndSec: 120}, 95, 90, 95, true},
		{store.Segment{StartSec: 100, EndSec: 120}, 95, 100, 95, false},
		{store.Segment{StartSec: -2, EndSec: 5}, 95, 0, 5, true},
	}
	for i, tt := range tests {
		start, end, ok := clampWindow(tt.seg, tt.duration)
		if ok != tt.ok || (ok && (start != tt.start || end != tt.end)) {
			t.Errorf("case %d: got (%v, %v, %v)", i, start, end, ok)
		}
	}
}

func TestFailureMessage(t *testing.T) {
	quota := fmt.Errorf("%w: %w", transcription.ErrTranscriptionQuota, errors.New("status 429"))
	exhausted := fmt.Errorf("%w after 5 attempts: %w", transcription.ErrTranscriptionExhausted, errors.New("status 503"))
	tests := []struct {
		name  stage.Name
		err   error
		want  string
		exact bool
	}{
		{stage.Transcribe, quota, "transcribe: transcription quota or billing issue", true},
		{stage.Transcribe, exhausted, "transcribe: transcription retries exhausted", true},
		{stage.PreviewRender, &transcoder.TranscodeError{Op: "cut_segment", Binary: "ffmpeg", ExitCode: 1, Stderr: "Conversion failed!"}, "preview_render: ffmpeg cut_segment: exit 1: Conversion failed!", true},
		{stage.AudioExtract, errors.New(strings.Repeat("x", 400)), "audio_extract: xxx", false},
	}
	for _, tt := range tests {
		got := FailureMessage(tt.name, tt.err)
		if tt.exact && got != tt.want {
			t.Errorf("FailureMessage = %q, want %q", got, tt.want)
		}
		if !tt.exact && (!strings.HasPrefix(got, tt.want) || len(got) > 200) {
			t.Errorf("FailureMessage = %q, want short message starting %q", got, tt.want)
		}
	}
}

func TestStorageErrorMarksCause(t *testing.T) {
	missing := storageError(stage.SilenceMap, "download audio", "prj_1/audio.wav", fmt.Errorf("get: %w", objectstore.ErrObjectNotFound))
	if !errors.Is(missing, services.ErrNotFound) || !errors.Is(missing, objectstore.ErrObjectNotFound) {
		t.Fatalf("expected not-found marker over the object store cause, got %v", missing)
	}
	down := storageError(stage.PreviewRender, "download source", "prj_1/source/a.mp4", objectstore.ErrStoreUnavailable)
	if !errors.Is(down, services.ErrExternalTool) || !errors.Is(down, objectstore.ErrStoreUnavailable) {
		t.Fatalf("expected external tool marker over the object store cause, got %v", down)
	}
	if !strings.Contains(down.Error(), "preview_render: download source: prj_1/source/a.mp4") {
		t.Fatalf("expected stage detail in %q", down.Error())
	}
}
