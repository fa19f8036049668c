// Package dispatch provides an in-process stage.Dispatcher that runs stages
// synchronously. It backs tests and one-shot CLI runs; the daemon uses the
// durable queue instead.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"clipforge/internal/stage"
)

// Call records one dispatch.
type Call struct {
	Stage stage.Name
	Args  stage.Args
}

// Failure pairs a dispatch with the error its handler returned.
type Failure struct {
	Call
	Err error
}

// Inline queues dispatches in memory and drains them in FIFO order. Nested
// dispatches made by a running handler are appended to the queue and drained
// by the outermost call, so a stage never waits on the stages it dispatches.
// Handler errors are collected rather than returned to the dispatching stage.
type Inline struct {
	handler stage.Handler

	mu       sync.Mutex
	pending  []Call
	calls    []Call
	failures []Failure
	draining bool
}

// NewInline builds an Inline dispatcher. SetHandler must be called before the
// first dispatch when the handler itself needs the dispatcher.
func NewInline(handler stage.Handler) *Inline {
	return &Inline{handler: handler}
}

// SetHandler installs the handler that executes dispatched stages.
func (d *Inline) SetHandler(handler stage.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

// Dispatch implements stage.Dispatcher.
func (d *Inline) Dispatch(ctx context.Context, name stage.Name, args stage.Args) error {
	if err := args.Validate(name); err != nil {
		return err
	}

	d.mu.Lock()
	if d.handler == nil {
		d.mu.Unlock()
		return errors.New("inline dispatcher has no handler")
	}
	call := Call{Stage: name, Args: args}
	d.calls = append(d.calls, call)
	d.pending = append(d.pending, call)
	if d.draining {
		d.mu.Unlock()
		return nil
	}
	d.draining = true
	d.mu.Unlock()

	d.drain(ctx)
	return nil
}

func (d *Inline) drain(ctx context.Context) {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 || ctx.Err() != nil {
			d.draining = false
			d.mu.Unlock()
			return
		}
		call := d.pending[0]
		d.pending = d.pending[1:]
		handler := d.handler
		d.mu.Unlock()

		if err := handler.Handle(ctx, call.Stage, call.Args); err != nil {
			d.mu.Lock()
			d.failures = append(d.failures, Failure{Call: call, Err: err})
			d.mu.Unlock()
		}
	}
}

// Calls returns every dispatch in the order it was made.
func (d *Inline) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Count returns how many dispatches targeted name.
func (d *Inline) Count(name stage.Name) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Stage == name {
			n++
		}
	}
	return n
}

// Failures returns handler errors collected while draining.
func (d *Inline) Failures() []Failure {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Failure, len(d.failures))
	copy(out, d.failures)
	return out
}

// Err joins every collected handler error, or returns nil.
func (d *Inline) Err() error {
	failures := d.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("%s(%s): %w", f.Stage, f.Args.ProjectID, f.Err))
	}
	return errors.Join(errs...)
}

// Reset clears recorded calls and failures.
func (d *Inline) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
	d.failures = nil
}
