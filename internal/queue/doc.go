// Package queue persists stage invocations as tasks in the shared SQL database
// and exposes the at-least-once delivery primitives the workflow manager needs.
//
// Tasks move pending → running → done. A failed delivery returns the task to
// pending with a later available_at, or marks it dead once max_deliveries is
// spent. Claim is a compare-and-set on a pending row, so concurrent workers
// never run the same delivery twice. Running tasks report heartbeats; the
// manager reclaims tasks whose heartbeat went stale.
//
// Stages must tolerate redelivery: a task may run again after a crash between
// the stage finishing and Complete being recorded.
package queue
