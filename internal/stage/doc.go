// Package stage names the pipeline stages and defines the contracts shared by
// dispatchers, handlers, and workers: the dispatch payload (Args), the
// Dispatcher and Handler interfaces, and readiness reporting via Health.
package stage
