// Package main hosts the ticketsync CLI entrypoint and command graph.
//
// The Cobra command tree maps terminal invocations onto the pipeline: run the
// producer and every stage pool together, run one component on its own as a
// separate process, finalize abandoned claims, and inspect progress through
// the status endpoint or the ledger directly. Configuration resolution and
// logger setup live here so subcommands only describe what to run.
package main
