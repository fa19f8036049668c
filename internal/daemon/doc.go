// Package daemon coordinates the long-running clipforge process.
//
// It ties the workflow manager and the HTTP intake surface into a single
// lifecycle guarded by a flock-based lock file so only one daemon serves a
// data directory at a time. Wiring of concrete dependencies lives in
// daemonrun; this package only owns startup, shutdown, and status.
package daemon
