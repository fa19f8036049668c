// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, task IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure messages
//     stage-identifying while preserving errors.Is matching.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
