package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
)

const (
	opExtractAudio  = "extract_audio"
	opCutSegment    = "cut_segment"
	opDetectSilence = "detect_silence"
	opProbe         = "probe"

	defaultTimeout = 30 * time.Minute
)

// Options configures a Transcoder.
type Options struct {
	FFmpegBinary       string
	FFprobeBinary      string
	Timeout            time.Duration
	VideoKbps          int
	AudioKbps          int
	SilenceThresholdDB float64
	SilenceMinSeconds  float64
	Runner             Runner
	Logger             *slog.Logger
}

// Transcoder drives ffmpeg and ffprobe.
type Transcoder struct {
	ffmpeg           string
	ffprobe          string
	timeout          time.Duration
	videoKbps        int
	audioKbps        int
	silenceThreshold float64
	silenceMin       float64
	run              Runner
	logger           *slog.Logger
}

// New constructs a Transcoder, filling unset options with defaults.
func New(opts Options) *Transcoder {
	t := &Transcoder{
		ffmpeg:           opts.FFmpegBinary,
		ffprobe:          opts.FFprobeBinary,
		timeout:          opts.Timeout,
		videoKbps:        opts.VideoKbps,
		audioKbps:        opts.AudioKbps,
		silenceThreshold: opts.SilenceThresholdDB,
		silenceMin:       opts.SilenceMinSeconds,
		run:              opts.Runner,
		logger:           logging.NewComponentLogger(opts.Logger, "transcoder"),
	}
	if t.ffmpeg == "" {
		t.ffmpeg = "ffmpeg"
	}
	if t.ffprobe == "" {
		t.ffprobe = "ffprobe"
	}
	if t.timeout <= 0 {
		t.timeout = defaultTimeout
	}
	if t.videoKbps <= 0 {
		t.videoKbps = 400
	}
	if t.audioKbps <= 0 {
		t.audioKbps = 64
	}
	if t.silenceThreshold >= 0 {
		t.silenceThreshold = -35
	}
	if t.silenceMin <= 0 {
		t.silenceMin = 0.4
	}
	if t.run == nil {
		t.run = ExecRunner
	}
	return t
}

// NewFromConfig builds a Transcoder from the [transcoder] section.
func NewFromConfig(cfg *config.Config, runner Runner, logger *slog.Logger) *Transcoder {
	tc := cfg.Transcoder
	return New(Options{
		FFmpegBinary:       tc.FFmpegBinary,
		FFprobeBinary:      tc.FFprobeBinary,
		Timeout:            time.Duration(tc.TimeoutSeconds) * time.Second,
		VideoKbps:          tc.PreviewVideoKbps,
		AudioKbps:          tc.PreviewAudioKbps,
		SilenceThresholdDB: tc.SilenceThresholdDB,
		SilenceMinSeconds:  tc.SilenceMinSeconds,
		Runner:             runner,
		Logger:             logger,
	})
}

// ExtractAudio writes a mono 16 kHz 16-bit PCM WAV of videoPath into ws and
// returns its path.
func (t *Transcoder) ExtractAudio(ctx context.Context, ws *Workspace, videoPath string) (string, error) {
	dest := ws.Path("audio.wav")
	err := t.produce(ctx, ws, opExtractAudio, "audio.wav", dest, func(out string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", videoPath,
			"-vn",
			"-sn",
			"-dn",
			"-ac", "1",
			"-ar", "16000",
			"-c:a", "pcm_s16le",
			out,
		}
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// CutSegment re-encodes [startSec, startSec+durationSec) of videoPath at the
// preview bitrates and returns the output path inside ws.
func (t *Transcoder) CutSegment(ctx context.Context, ws *Workspace, videoPath string, startSec, durationSec float64) (string, error) {
	if durationSec <= 0 || startSec < 0 {
		return "", fmt.Errorf("%w: start=%.3f duration=%.3f", ErrInvalidSegment, startSec, durationSec)
	}
	name := fmt.Sprintf("cut-%s-%s.mp4", formatSeconds(startSec), formatSeconds(durationSec))
	dest := ws.Path(name)
	err := t.produce(ctx, ws, opCutSegment, name, dest, func(out string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-ss", formatSeconds(startSec),
			"-t", formatSeconds(durationSec),
			"-i", videoPath,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-b:v", fmt.Sprintf("%dk", t.videoKbps),
			"-c:a", "aac",
			"-b:a", fmt.Sprintf("%dk", t.audioKbps),
			"-movflags", "+faststart",
			out,
		}
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// DetectSilence runs ffmpeg's silencedetect filter and returns its
// diagnostic output for ParseSilence.
func (t *Transcoder) DetectSilence(ctx context.Context, audioPath string) (string, error) {
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s", formatSeconds(t.silenceThreshold), formatSeconds(t.silenceMin))
	out, err := t.exec(ctx, opDetectSilence, t.ffmpeg,
		"-hide_banner",
		"-nostats",
		"-i", audioPath,
		"-af", filter,
		"-f", "null",
		"-",
	)
	if err != nil {
		return "", err
	}
	return string(out.Stderr), nil
}

// ProbeDuration returns the media duration in seconds. Failures are logged
// and reported as 0 since duration is advisory.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) float64 {
	result, err := t.Probe(ctx, path)
	if err != nil {
		logging.WarnWithContext(t.logger, "duration probe failed", "probe_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is a readable media container"),
			logging.String(logging.FieldImpact, "duration left unknown; clips are not clamped"),
		)
		return 0
	}
	return result.DurationSeconds()
}

// produce runs ffmpeg writing into a per-invocation scratch directory and
// moves the result to dest once the process has succeeded.
func (t *Transcoder) produce(ctx context.Context, ws *Workspace, op, name, dest string, args func(out string) []string) error {
	scratch, err := os.MkdirTemp(ws.Dir(), op+"-*")
	if err != nil {
		return fmt.Errorf("%s: create scratch dir: %w", op, err)
	}
	defer os.RemoveAll(scratch)

	tmpOut := filepath.Join(scratch, name)
	if _, err := t.exec(ctx, op, t.ffmpeg, args(tmpOut)...); err != nil {
		return err
	}

	info, err := os.Stat(tmpOut)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = ErrEmptyOutput
		}
		return &TranscodeError{Op: op, Binary: t.ffmpeg, Err: fmt.Errorf("%w: %v", ErrEmptyOutput, err)}
	}
	if err := os.Rename(tmpOut, dest); err != nil {
		return fmt.Errorf("%s: move output: %w", op, err)
	}
	return nil
}

func (t *Transcoder) exec(ctx context.Context, op, binary string, args ...string) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	out, err := t.run(runCtx, binary, args...)
	if err == nil {
		t.logger.Debug("subprocess finished",
			logging.String("op", op),
			logging.String("binary", binary),
			logging.Duration("elapsed", time.Since(started)),
		)
		return out, nil
	}

	terr := &TranscodeError{
		Op:       op,
		Binary:   binary,
		ExitCode: out.ExitCode,
		Stderr:   string(out.Stderr),
		Err:      err,
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		terr.TimedOut = true
	}
	return out, terr
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
