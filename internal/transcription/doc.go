// Package transcription turns extracted audio into timed transcript segments.
//
// Provider implementations talk to a speech-to-text backend; HTTPProvider
// speaks the OpenAI-compatible /audio/transcriptions API. Service wraps a
// provider with failure classification and exponential backoff: rate limits
// and transient network or server errors are retried, quota and billing
// failures stop immediately. With no provider configured, Service returns a
// deterministic Mock transcript so the pipeline runs without credentials.
package transcription
