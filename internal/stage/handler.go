package stage

import "context"

// Dispatcher enqueues a stage invocation. Implementations return once the
// invocation is accepted; they never wait for the stage to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, name Name, args Args) error
}

// Handler executes a single stage invocation.
type Handler interface {
	Handle(ctx context.Context, name Name, args Args) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, name Name, args Args) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, name Name, args Args) error {
	return f(ctx, name, args)
}

// HealthChecker is implemented by handlers that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) []Health
}
