// Package httpapi is the thin HTTP surface for uploads and project
// inspection.
//
// Routes:
//
//	GET  /health           liveness plus workflow diagnostics when available
//	POST /jobs/create      multipart upload (file, optional duration_hint_sec)
//	GET  /jobs/{id}        project with clips and assets
//	POST /jobs/{id}/retry  restart a failed project
//
// Handlers delegate to the intake package and api.ProjectService; no pipeline
// logic lives here.
package httpapi
