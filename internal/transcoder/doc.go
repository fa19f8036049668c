// Package transcoder wraps the ffmpeg and ffprobe subprocesses the pipeline
// depends on: audio extraction, duration probing, preview cuts, and silence
// detection.
//
// Every subprocess runs under a wall-clock timeout and inside a scoped
// temporary directory that is removed on every exit path. Finished outputs
// are moved into the caller's Workspace only after the process succeeds, so a
// failed or cancelled run never leaves a partial file behind. Failures surface
// as *TranscodeError carrying the exit status and captured stderr.
package transcoder
