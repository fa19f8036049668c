// Package workflow executes queued stage tasks.
//
// The Manager runs a fixed pool of workers. Each worker claims the oldest
// available task from the queue, keeps its heartbeat fresh while the stage
// handler runs, and then marks the task done or schedules a redelivery with
// exponential backoff. A separate sweep returns tasks whose heartbeat went
// stale (for example after a crash) to the queue, so every dispatched stage
// is delivered at least once.
//
// Stages must therefore be idempotent; the pipeline package owns that
// guarantee, this package only owns delivery.
package workflow
