// Package workflow runs the per-stage worker pools that drain the ledger.
//
// A Pool starts N workers for one stage. Each worker claims the next Unset
// record, runs the stage processor outside the ledger lock, and commits the
// terminal outcome; any error or panic inside the processor commits Empty so
// a single ticket never stops the pool. Idle workers wait on the wake-up
// Broadcaster or the poll interval and exit once the termination policy says
// no more work will appear. When every worker has exited the pool runs the
// finalizer on a context detached from cancellation, so no claim is left
// InProgress even after an interrupted run.
package workflow
