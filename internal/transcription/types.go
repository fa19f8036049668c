package transcription

import (
	"context"
	"io"
)

// Segment is a timed span of transcript text.
type Segment struct {
	ID         string   `json:"id"`
	StartSec   float64  `json:"start_sec"`
	EndSec     float64  `json:"end_sec"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSec - s.StartSec
}

// Result is a complete transcription.
type Result struct {
	Provider string
	Language string
	Text     string
	Segments []Segment
}

// Provider performs a single transcription attempt.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio io.Reader, prompt string) (Result, error)
}
