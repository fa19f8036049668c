// Command clipforge is the operator CLI: it runs the daemon, submits uploads,
// and inspects projects and the task queue directly through the shared store.
package main
