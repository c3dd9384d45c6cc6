// Package source talks to the remote helpdesk. It lists ticket ids (from the
// Freshdesk API or a CSV export), fetches complete tickets with their
// conversations, and downloads attachment files into a storage.Sink.
//
// Requests honour Retry-After on 429 responses and retry transient failures
// with exponential backoff; everything else surfaces as a classified error
// from internal/services.
package source
