package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
)

// HeartbeatMonitor keeps claimed tasks alive and returns abandoned ones to
// the queue.
type HeartbeatMonitor struct {
	queue    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(q *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		queue:    q,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale resets running tasks whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.timeout <= 0 {
		return 0, nil
	}
	reclaimed, err := h.queue.ReclaimStale(ctx, time.Now().UTC().Add(-h.timeout))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale tasks",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "heartbeat_reclaim"),
		)
	}
	return reclaimed, nil
}

// StartLoop refreshes the task heartbeat until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, task *queue.Task) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.queue.Heartbeat(ctx, task); err != nil {
				switch {
				case errors.Is(err, context.Canceled):
					return
				case errors.Is(err, queue.ErrNotClaimed):
					logger.Warn("task no longer claimed by this worker",
						logging.Error(err),
						logging.String(logging.FieldEventType, "heartbeat_lost_claim"),
						logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout if stages legitimately stall"),
						logging.String(logging.FieldImpact, "the task may run twice"),
					)
					return
				default:
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
