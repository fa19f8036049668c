package transcription_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"clipforge/internal/transcription"
)

func TestHTTPProviderSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("response_format") != "verbose_json" {
			t.Errorf("unexpected form fields %v", r.MultipartForm.Value)
		}
		if r.FormValue("prompt") != "podcast" {
			t.Errorf("prompt = %q", r.FormValue("prompt"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFF" {
				t.Errorf("file contents %q", data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" hi there ","language":"english","segments":[{"id":0,"start":0,"end":2.5,"text":" hi","avg_logprob":0},{"id":1,"start":2.5,"end":4,"text":" there"}]}`)
	}))
	defer server.Close()

	provider := transcription.NewHTTPProvider("sk-test", transcription.WithBaseURL(server.URL+"/v1/"))
	result, err := provider.Transcribe(context.Background(), bytes.NewReader([]byte("RIFF")), "podcast")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hi there" || result.Language != "english" || result.Provider != "openai" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Segments) != 2 || result.Segments[0].ID != "seg_0" || result.Segments[0].Text != "hi" {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if c := result.Segments[0].Confidence; c == nil || *c != 1 {
		t.Fatalf("expected confidence 1 from avg_logprob 0, got %v", c)
	}
	if result.Segments[1].Confidence != nil {
		t.Fatal("expected nil confidence without avg_logprob")
	}
}

func TestHTTPProviderErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   transcription.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, transcription.KindRetryable},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, transcription.KindFatal},
		{"payment", http.StatusPaymentRequired, `payment required`, transcription.KindFatal},
		{"server", http.StatusInternalServerError, `oops`, transcription.KindRetryable},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"invalid file format"}}`, transcription.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			provider := transcription.NewHTTPProvider("k", transcription.WithBaseURL(server.URL))
			_, err := provider.Transcribe(context.Background(), bytes.NewReader([]byte("x")), "")
			var apiErr *transcription.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Fatalf("expected APIError with status %d, got %v", tt.status, err)
			}
			if got := transcription.Classify(err); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceRetriesAgainstHTTPServer(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("attempt %d missing file: %v", n, err)
		} else if data, _ := io.ReadAll(file); string(data) != "RIFF" {
			t.Errorf("attempt %d sent %q", n, data)
		}
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"text":"ok","language":"en","segments":[{"id":0,"start":0,"end":1,"text":"ok"}]}`)
	}))
	defer server.Close()

	svc := transcription.NewService(transcription.Options{
		Provider:    transcription.NewHTTPProvider("k", transcription.WithBaseURL(server.URL)),
		MaxAttempts: 5,
	})
	result, err := svc.Transcribe(context.Background(), bytes.NewReader([]byte("RIFF")), "", 0)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if hits.Load() != 3 || result.Text != "ok" {
		t.Fatalf("hits=%d result=%+v", hits.Load(), result)
	}
}

func TestHTTPProviderRequiresKey(t *testing.T) {
	_, err := transcription.NewHTTPProvider("").Transcribe(context.Background(), bytes.NewReader(nil), "")
	if err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestServiceResendsWholeAudioAfterEarlyRejection(t *testing.T) {
	payload := make([]byte, 4<<20)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range payload {
		payload[i] = byte(rng.Uint32())
	}
	want := sha256.Sum256(payload)
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	for iter := range 10 {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 5 {
				// Reject after a partial read, as a rate limiter would.
				io.CopyN(io.Discard, r.Body, 1024)
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("iteration %d: missing file: %v", iter, err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(file)
			if len(data) != len(payload) || sha256.Sum256(data) != want {
				t.Errorf("iteration %d: final upload has %d bytes, want %d identical bytes", iter, len(data), len(payload))
			}
			io.WriteString(w, `{"text":"ok","language":"en","segments":[]}`)
		}))

		audio, err := os.Open(path)
		if err != nil {
			server.Close()
			t.Fatalf("open audio: %v", err)
		}
		svc := transcription.NewService(transcription.Options{
			Provider:    transcription.NewHTTPProvider("k", transcription.WithBaseURL(server.URL)),
			MaxAttempts: 8,
		})
		_, err = svc.Transcribe(context.Background(), audio, "", 0)
		audio.Close()
		server.Close()
		if err != nil {
			t.Fatalf("iteration %d: Transcribe: %v", iter, err)
		}
		if n := hits.Load(); n != 5 {
			t.Fatalf("iteration %d: expected success on the fifth request, got %d requests", iter, n)
		}
	}
}

func TestHTTPProviderRecordsRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := transcription.NewHTTPProvider("k", transcription.WithBaseURL(server.URL)).
		Transcribe(context.Background(), bytes.NewReader([]byte("x")), "")
	var apiErr *transcription.APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter != 7*time.Second {
		t.Fatalf("expected RetryAfter 7s, got %v", err)
	}
}
