// Package daemonrun wires configuration into a running clipforge process:
// store, queue, object store, stage executors, worker pool and HTTP surface.
package daemonrun
