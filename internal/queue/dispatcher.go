package queue

import (
	"context"
	"log/slog"

	"clipforge/internal/logging"
	"clipforge/internal/stage"
)

// Dispatcher persists dispatches as tasks for the workflow manager.
type Dispatcher struct {
	store         *Store
	maxDeliveries int
	logger        *slog.Logger
	onEnqueue     func()
}

// NewDispatcher builds a Dispatcher that enqueues with the given delivery budget.
func NewDispatcher(store *Store, maxDeliveries int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{store: store, maxDeliveries: maxDeliveries, logger: logger}
}

// Dispatch implements stage.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, name stage.Name, args stage.Args) error {
	task, err := d.store.Enqueue(ctx, name, args, d.maxDeliveries)
	if err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "task enqueued",
		logging.String(logging.FieldEventType, "task_enqueued"),
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldStage, string(name)),
		logging.String(logging.FieldProjectID, args.ProjectID),
	)
	if d.onEnqueue != nil {
		d.onEnqueue()
	}
	return nil
}

// OnEnqueue registers fn to run after every successful enqueue, typically to
// wake an idle worker.
func (d *Dispatcher) OnEnqueue(fn func()) {
	d.onEnqueue = fn
}
