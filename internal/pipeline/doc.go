// Package pipeline wires configuration into the producer and the per-stage
// worker pools and runs them together.
//
// Build opens the shared collaborators once (ledger, artifact store, storage
// sink, attachment tracker, completion flags, notifier). Run starts the
// producer and every requested stage pool under one errgroup, staggering the
// pools the way separate consumer processes would be started. Each component
// can also be run on its own from the CLI (produce, consume, finalize).
package pipeline
