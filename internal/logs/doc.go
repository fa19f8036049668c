// Package logs tails the daemon log file for `clipforge logs`, with bounded
// memory for "last N lines" reads and offset-based follow polling.
package logs
