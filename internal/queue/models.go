package queue

import (
	"time"

	"clipforge/internal/stage"
)

// Status is a task's delivery state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusDead    Status = "dead"
)

// AllStatuses lists every task status.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusDone, StatusDead}
}

// Task is one stage invocation awaiting or undergoing delivery.
type Task struct {
	ID            string
	Stage         stage.Name
	Args          stage.Args
	Status        Status
	Deliveries    int
	MaxDeliveries int
	AvailableAt   time.Time
	ClaimedBy     string
	ClaimedAt     *time.Time
	HeartbeatAt   *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Seq           int64
}

// Exhausted reports whether no delivery attempts remain.
func (t *Task) Exhausted() bool {
	return t.Deliveries >= t.MaxDeliveries
}

// Stats summarizes task counts.
type Stats struct {
	Pending int
	Running int
	Done    int
	Dead    int
}

// Total returns the number of tasks across all statuses.
func (s Stats) Total() int {
	return s.Pending + s.Running + s.Done + s.Dead
}
