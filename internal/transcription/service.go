package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clipforge/internal/config"
	"clipforge/internal/logging"
)

const (
	// DefaultMaxAttempts bounds provider calls per transcription.
	DefaultMaxAttempts = 5
	// DefaultBackoffBase is the delay before the first retry.
	DefaultBackoffBase = time.Second
	// DefaultJitter is the upper bound of random delay added to each backoff.
	DefaultJitter = 500 * time.Millisecond
	// MaxRetryAfter caps how long a provider's Retry-After can stall a retry.
	MaxRetryAfter = 2 * time.Minute
)

// Options configures a Service.
type Options struct {
	// Provider performs real transcription. Nil selects the mock.
	Provider    Provider
	MaxAttempts int
	BackoffBase time.Duration
	// Jitter is the maximum random delay added to each backoff. Zero disables it.
	Jitter time.Duration
	Logger *slog.Logger
}

// Service applies the retry policy around a Provider.
type Service struct {
	provider    Provider
	maxAttempts int
	base        time.Duration
	jitter      time.Duration
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(opts Options) *Service {
	s := &Service{
		provider:    opts.Provider,
		maxAttempts: opts.MaxAttempts,
		base:        opts.BackoffBase,
		jitter:      opts.Jitter,
		logger:      logging.NewComponentLogger(opts.Logger, "transcription"),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.base < 0 {
		s.base = 0
	}
	if s.jitter < 0 {
		s.jitter = 0
	}
	return s
}

// NewServiceFromConfig wires the HTTP provider when an API key is configured.
func NewServiceFromConfig(cfg *config.Config, logger *slog.Logger) *Service {
	tc := cfg.Transcription
	var provider Provider
	if cfg.RealTranscription() {
		provider = NewHTTPProvider(tc.APIKey,
			WithBaseURL(tc.BaseURL),
			WithModel(tc.Model),
			WithHTTPClient(&http.Client{Timeout: time.Duration(tc.TimeoutSeconds) * time.Second}),
		)
	}
	return NewService(Options{
		Provider:    provider,
		MaxAttempts: tc.MaxAttempts,
		BackoffBase: time.Duration(tc.BackoffBaseSeconds * float64(time.Second)),
		Jitter:      DefaultJitter,
		Logger:      logger,
	})
}

// ProviderName reports which backend handles requests.
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return MockProviderName
	}
	return s.provider.Name()
}

// Transcribe runs the provider with retries. Without a provider it returns
// Mock(durationHint). The audio stream is rewound before every attempt.
func (s *Service) Transcribe(ctx context.Context, audio io.ReadSeeker, prompt string, durationHint float64) (Result, error) {
	if s.provider == nil {
		return Mock(durationHint), nil
	}

	var (
		result   Result
		attempt  int
		schedule = newExponentialJitter(s.base, s.jitter)
	)
	op := func() error {
		attempt++
		if _, err := audio.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(fmt.Errorf("rewind audio: %w", err))
		}
		res, err := s.provider.Transcribe(ctx, audio, prompt)
		if err == nil {
			result = res
			return nil
		}
		if Classify(err) != KindRetryable {
			return backoff.Permanent(err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			schedule.atLeast(apiErr.RetryAfter)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "transcription attempt failed; retrying", "transcription_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", s.maxAttempts),
			logging.Duration("wait", wait),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "provider rate limited or unreachable"),
			logging.String(logging.FieldImpact, "transcription delayed"),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(schedule, uint64(s.maxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		if result.Provider == "" {
			result.Provider = s.provider.Name()
		}
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}

	switch Classify(err) {
	case KindFatal:
		return Result{}, fmt.Errorf("%w: %w", ErrTranscriptionQuota, err)
	case KindRetryable:
		return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrTranscriptionExhausted, attempt, err)
	default:
		return Result{}, err
	}
}

// exponentialJitter yields base*2^(n-1) plus up to jitter of random delay
// before the nth retry, raised to any floor requested by the provider.
type exponentialJitter struct {
	base    time.Duration
	jitter  time.Duration
	attempt int
	floor   time.Duration
}

// atLeast makes the next backoff wait no less than d, capped at MaxRetryAfter.
func (b *exponentialJitter) atLeast(d time.Duration) {
	b.floor = min(max(b.floor, d), MaxRetryAfter)
}

func newExponentialJitter(base, jitter time.Duration) *exponentialJitter {
	return &exponentialJitter{base: base, jitter: jitter}
}

func (b *exponentialJitter) NextBackOff() time.Duration {
	b.attempt++
	delay := b.base << (b.attempt - 1)
	if delay < 0 {
		return backoff.Stop
	}
	if b.jitter > 0 {
		delay += rand.N(b.jitter + 1)
	}
	delay = max(delay, b.floor)
	b.floor = 0
	return delay
}

func (b *exponentialJitter) Reset() {
	b.attempt = 0
	b.floor = 0
}
