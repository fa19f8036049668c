package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/objectstore"
	"clipforge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTranscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good-key":
			w.WriteHeader(http.StatusOK)
		case "Bearer broke-key":
			w.WriteHeader(http.StatusPaymentRequired)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		key    string
		passed bool
		detail string
	}{
		{"mock", "", true, "mock (no API key configured)"},
		{"ok", "good-key", true, ""},
		{"bad key", "bad-key", false, "auth failed (invalid api key)"},
		{"quota", "broke-key", false, "quota or billing issue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckTranscription(context.Background(), config.Transcription{APIKey: tt.key, BaseURL: srv.URL + "/v1/", Model: "whisper-1"})
			if result.Passed != tt.passed {
				t.Fatalf("passed = %v, detail %q", result.Passed, result.Detail)
			}
			if tt.detail != "" && result.Detail != tt.detail {
				t.Fatalf("detail = %q, want %q", result.Detail, tt.detail)
			}
		})
	}
}

type failingStore struct{ objectstore.Client }

func (failingStore) EnsureBucket(context.Context, string) error {
	return objectstore.ErrStoreUnavailable
}

func TestCheckObjectStore(t *testing.T) {
	fs, err := objectstore.NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if r := CheckObjectStore(context.Background(), fs, "uploads"); !r.Passed {
		t.Fatalf("expected fs store to pass: %s", r.Detail)
	}
	if r := CheckObjectStore(context.Background(), failingStore{}, "uploads"); r.Passed {
		t.Fatal("expected unavailable store to fail")
	}
	if r := CheckObjectStore(context.Background(), nil, "uploads"); r.Passed {
		t.Fatal("expected missing store to fail")
	}
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func TestCheckDatabase(t *testing.T) {
	if r := CheckDatabase(context.Background(), pingStub{}, "sqlite"); !r.Passed || r.Detail != "sqlite reachable" {
		t.Fatalf("unexpected result %+v", r)
	}
	if r := CheckDatabase(context.Background(), pingStub{err: errors.New("refused")}, "postgres"); r.Passed {
		t.Fatal("expected ping failure")
	}
}

func TestCheckerReportsMissingBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Transcoder.FFprobeBinary = "clearly-not-present-ffprobe"

	health := NewChecker(cfg).HealthCheck(context.Background())
	ready := map[string]bool{}
	for _, h := range health {
		ready[h.Name] = h.Ready
	}
	if !ready["Work directory"] || !ready["Data directory"] || !ready["Object store root"] {
		t.Fatalf("expected directories ready, got %+v", health)
	}
	if !ready["FFmpeg"] {
		t.Fatalf("expected stubbed ffmpeg ready, got %+v", health)
	}
	if ready["FFprobe"] {
		t.Fatalf("expected missing ffprobe unhealthy, got %+v", health)
	}
}
