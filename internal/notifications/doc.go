// Package notifications publishes run milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the pipeline can report unconditionally. Messages are short plain-text
// bodies with ntfy Title, Tags, and Priority headers.
package notifications
