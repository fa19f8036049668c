// Package intake turns an uploaded video into a queued project.
//
// Accept writes the source object under {project_id}/source/{filename},
// records the project and dispatches AudioExtract. Restart re-queues a failed
// project. Both the HTTP surface and the CLI go through this package.
package intake
