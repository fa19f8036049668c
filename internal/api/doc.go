// Package api defines wire-format types and converters shared by the HTTP
// surface and the CLI. It translates store and queue models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Project, Clip, Asset: entity views. ProjectDetail bundles a project with
// its clips and assets.
//
// CreateJobResponse: acknowledgement returned when an upload is accepted.
//
// Task, WorkflowStatus: queue and worker diagnostics.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the intake contract. Enums are
// exposed as lowercase strings and timestamps use RFC3339 with milliseconds.
// Slices in detail views are never nil so they encode as [].
package api
