// Package services defines shared utilities consumed by the stage handlers,
// the producer, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp ticket IDs, stage names, worker numbers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so per-item failures can
//     be classified in logs before they collapse into an empty outcome.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
