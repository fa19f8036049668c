package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"clipforge/internal/transcoder"
)

// FakeFFmpeg is an in-process stand-in for ffmpeg and ffprobe. Encodes write
// a small payload to the output path, silencedetect runs return
// SilenceOutput on stderr, and ffprobe reports DurationSec.
type FakeFFmpeg struct {
	DurationSec   float64
	SilenceOutput string
	// FailCuts makes every preview cut exit non-zero.
	FailCuts bool
	// AudioBytes sizes the extracted WAV; 0 writes a short payload.
	AudioBytes int

	mu    sync.Mutex
	calls [][]string
}

// Runner returns a transcoder.Runner backed by f.
func (f *FakeFFmpeg) Runner() transcoder.Runner {
	return f.run
}

// Calls returns a copy of every recorded invocation.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CountOp returns how many invocations carried flag among their arguments.
func (f *FakeFFmpeg) CountOp(flag string) int {
	n := 0
	for _, call := range f.Calls() {
		if slices.Contains(call, flag) {
			n++
		}
	}
	return n
}

func (f *FakeFFmpeg) run(ctx context.Context, name string, args ...string) (transcoder.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return transcoder.Output{ExitCode: -1}, err
	}
	switch {
	case strings.Contains(filepath.Base(name), "ffprobe"):
		if f.DurationSec <= 0 {
			return transcoder.Output{ExitCode: 1, Stderr: []byte("Invalid data found when processing input")}, errors.New("exit status 1")
		}
		body := fmt.Sprintf(`{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio"}],"format":{"duration":"%f"}}`, f.DurationSec)
		return transcoder.Output{Stdout: []byte(body)}, nil
	case slices.Contains(args, "-af"):
		return transcoder.Output{Stderr: []byte(f.SilenceOutput)}, nil
	case slices.Contains(args, "-ss") && f.FailCuts:
		return transcoder.Output{ExitCode: 1, Stderr: []byte("Conversion failed!")}, errors.New("exit status 1")
	}

	payload := []byte("fake-media")
	if slices.Contains(args, "pcm_s16le") && f.AudioBytes > 0 {
		payload = make([]byte, f.AudioBytes)
	}
	if err := os.WriteFile(args[len(args)-1], payload, 0o644); err != nil {
		return transcoder.Output{ExitCode: 1}, err
	}
	return transcoder.Output{}, nil
}
