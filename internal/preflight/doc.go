// Package preflight provides readiness checks for the external services and
// filesystem paths clipforge depends on.
//
// These checks run in two contexts:
//   - The daemon's health endpoint reports RunAll through a Checker, which
//     covers only cheap local checks (directories and ffmpeg binaries).
//   - The CLI "clipforge status" command adds the network checks
//     (CheckDatabase, CheckObjectStore, CheckTranscription).
package preflight
