package transcription

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/services"
)

var (
	// ErrTranscriptionQuota marks a quota or billing failure. It is never retried.
	ErrTranscriptionQuota = errors.New("transcription quota or billing issue")
	// ErrTranscriptionExhausted marks a retryable failure that persisted through every attempt.
	ErrTranscriptionExhausted = errors.New("transcription retries exhausted")
)

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
	// RetryAfter is the provider-requested wait before the next attempt.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("status %d", e.StatusCode)}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, services.Truncate(e.Message, 200))
	}
	return "transcription api: " + strings.Join(parts, ": ")
}

// Is maps quota responses onto ErrTranscriptionQuota.
func (e *APIError) Is(target error) bool {
	return target == ErrTranscriptionQuota && e.quota()
}

func (e *APIError) quota() bool {
	if e.StatusCode == http.StatusPaymentRequired {
		return true
	}
	for _, field := range []string{e.Code, e.Type, e.Message} {
		lower := strings.ToLower(field)
		if strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "billing") {
			return true
		}
	}
	return false
}

// Kind is the retry classification of a provider failure.
type Kind int

const (
	// KindUnknown failures are not retried.
	KindUnknown Kind = iota
	// KindRetryable covers rate limits and transient network or server errors.
	KindRetryable
	// KindFatal covers quota and billing failures.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify decides whether err should be retried.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrTranscriptionQuota) {
		return KindFatal
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return KindRetryable
		case apiErr.StatusCode >= 500:
			return KindRetryable
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return KindRetryable
		default:
			return KindUnknown
		}
	}
	if errors.Is(err, services.ErrTransient) {
		return KindRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindRetryable
	}
	return KindUnknown
}
