// Package config loads, normalizes, and validates ticketsync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FRESHDESK_DOMAIN and FRESHDESK_API_KEY. The Config type centralizes every
// knob the producer, the worker pools, and the CLI need, so the ledger path,
// worker counts, and termination thresholds are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
