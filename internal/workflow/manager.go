package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
)

const maxRetryDelay = 10 * time.Minute

// Manager runs a pool of workers that claim queued tasks and hand them to a
// stage handler.
type Manager struct {
	queue   *queue.Store
	handler stage.Handler
	logger  *slog.Logger

	workers      int
	pollInterval time.Duration
	retryBase    time.Duration
	workerPrefix string

	heartbeat *HeartbeatMonitor
	health    stage.HealthChecker
	wake      chan struct{}

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastTask *queue.Task
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides how long an idle worker waits before polling again.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithRetryBase overrides the first redelivery delay after a failed attempt.
func WithRetryBase(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.retryBase = d
		}
	}
}

// WithHeartbeat overrides the heartbeat cadence and the staleness cutoff.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.heartbeat.interval = interval
		m.heartbeat.timeout = timeout
	}
}

// WithWorkerPrefix sets the prefix of worker identities recorded on claimed tasks.
func WithWorkerPrefix(prefix string) ManagerOption {
	return func(m *Manager) {
		if prefix != "" {
			m.workerPrefix = prefix
		}
	}
}

// WithHealthChecker sets the readiness source reported by Status. By default
// the handler is used when it implements stage.HealthChecker.
func WithHealthChecker(checker stage.HealthChecker) ManagerOption {
	return func(m *Manager) {
		m.health = checker
	}
}

// NewManager constructs a workflow manager from configuration.
func NewManager(cfg *config.Config, q *queue.Store, handler stage.Handler, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		queue:        q,
		handler:      handler,
		logger:       logger,
		workers:      max(cfg.Workflow.Workers, 1),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryBase:    time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		workerPrefix: defaultWorkerPrefix(),
		heartbeat: NewHeartbeatMonitor(
			q,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		wake: make(chan struct{}, 1),
	}
	if checker, ok := handler.(stage.HealthChecker); ok {
		m.health = checker
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	return m
}

// Wake nudges one idle worker to poll immediately.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// RetryDelay returns the wait before the next delivery of a task that has
// failed deliveries times. The delay doubles per attempt up to a ceiling.
func (m *Manager) RetryDelay(deliveries int) time.Duration {
	if m.retryBase <= 0 || deliveries <= 0 {
		return 0
	}
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = m.retryBase
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxInterval = maxRetryDelay
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var delay time.Duration
	for range deliveries {
		delay = schedule.NextBackOff()
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func defaultWorkerPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "clipforge"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
