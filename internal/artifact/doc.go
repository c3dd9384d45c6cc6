// Package artifact owns the per-ticket upstream artifact written by the
// producer (complete_ticket_data/ticket_{id}_complete.json) and read by every
// stage and evaluator. Writes are atomic; readers wait for an artifact with a
// bounded poll and treat a missing artifact as "no data".
package artifact
