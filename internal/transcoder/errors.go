package transcoder

import (
	"errors"
	"fmt"

	"clipforge/internal/services"
)

var (
	// ErrInvalidSegment rejects cut windows with a negative start or non-positive duration.
	ErrInvalidSegment = errors.New("invalid segment window")
	// ErrEmptyOutput reports a process that exited cleanly but produced no bytes.
	ErrEmptyOutput = errors.New("empty output")
)

// TranscodeError describes a failed external tool invocation.
type TranscodeError struct {
	Op       string
	Binary   string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *TranscodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := services.Truncate(e.Stderr, 240)
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s %s: timed out", e.Binary, e.Op)
	case detail != "":
		return fmt.Sprintf("%s %s: exit %d: %s", e.Binary, e.Op, e.ExitCode, detail)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: exit %d: %v", e.Binary, e.Op, e.ExitCode, e.Err)
	default:
		return fmt.Sprintf("%s %s: exit %d", e.Binary, e.Op, e.ExitCode)
	}
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Is lets callers match the shared service markers.
func (e *TranscodeError) Is(target error) bool {
	switch target {
	case services.ErrExternalTool:
		return true
	case services.ErrTimeout:
		return e.TimedOut
	}
	return false
}
