package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/services"
)

const releaseTimeout = 5 * time.Second

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.handler == nil || m.queue == nil {
		m.mu.Unlock()
		return errors.New("workflow handler not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	go m.runReclaimer(runCtx)
	for i := range m.workers {
		worker := fmt.Sprintf("%s-w%d", m.workerPrefix, i+1)
		go m.runWorker(runCtx, worker)
	}

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("poll_interval", m.pollInterval),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop terminates background processing and waits for in-flight tasks to
// return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.timeout / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			m.setLastError(err)
			m.logger.Warn("reclaim stale tasks failed; stuck tasks may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "abandoned tasks wait until the next sweep"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, worker string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("worker", worker))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := m.queue.Claim(ctx, worker)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}
		m.processTask(ctx, logger, task)
	}
}

func (m *Manager) processTask(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	m.setLastTask(task)

	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithProjectID(taskCtx, task.Args.ProjectID)
	taskCtx = services.WithStage(taskCtx, string(task.Stage))
	taskLogger := logging.WithContext(taskCtx, logger)

	taskLogger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.Int("delivery", task.Deliveries),
		logging.Int("max_deliveries", task.MaxDeliveries),
	)

	hbCtx, hbCancel := context.WithCancel(taskCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task)

	started := time.Now()
	err := m.handler.Handle(taskCtx, task.Stage, task.Args)
	hbCancel()
	hbWG.Wait()

	// Store updates outlive shutdown so the claim is never left dangling.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(taskCtx), releaseTimeout)
	defer cancel()

	if err == nil {
		if cErr := m.queue.Complete(finishCtx, task); cErr != nil {
			m.setLastError(cErr)
			taskLogger.Warn("could not mark task done",
				logging.Error(cErr),
				logging.String(logging.FieldEventType, "task_complete_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "the task may be delivered again"),
			)
			return
		}
		taskLogger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Duration("elapsed", time.Since(started)),
		)
		return
	}

	if ctx.Err() != nil {
		// Interrupted by shutdown; the delivery does not count.
		if rErr := m.queue.Release(finishCtx, task); rErr != nil {
			taskLogger.Warn("could not release interrupted task",
				logging.Error(rErr),
				logging.String(logging.FieldEventType, "task_release_failed"),
				logging.String(logging.FieldErrorHint, "the stale claim is reclaimed after the heartbeat timeout"),
			)
			return
		}
		taskLogger.Info("task released",
			logging.String(logging.FieldEventType, "task_released"),
			logging.Error(err),
		)
		return
	}

	retryAt := time.Now().UTC().Add(m.RetryDelay(task.Deliveries))
	m.setLastError(err)
	status, fErr := m.queue.Fail(finishCtx, task, err, retryAt)
	if fErr != nil {
		taskLogger.Error("could not record task failure",
			logging.Error(fErr),
			logging.String(logging.FieldEventType, "task_fail_record_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldEventType, "task_failed"),
		logging.String("task_status", string(status)),
		logging.Duration("elapsed", time.Since(started)),
	}
	if status == queue.StatusDead {
		taskLogger.Error("task failed; deliveries exhausted", logging.Args(append(attrs,
			logging.String(logging.FieldErrorHint, "inspect the project and run `clipforge tasks retry`"),
		)...)...)
		return
	}
	taskLogger.Warn("task failed; will redeliver", logging.Args(append(attrs,
		logging.String("retry_at", retryAt.Format(time.RFC3339)),
		logging.String(logging.FieldErrorHint, "the task is retried automatically"),
		logging.String(logging.FieldImpact, "stage output is delayed"),
	)...)...)
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next task",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	wait := m.retryBase
	if wait <= 0 {
		wait = m.pollInterval
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
