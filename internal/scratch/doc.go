// Package scratch reclaims per-stage workspaces left under the work directory
// by workers that died before cleaning up.
package scratch
