// Package textutil provides filename sanitization for attachment downloads.
//
// Attachment names come straight from the helpdesk and may contain path
// separators or characters that are invalid on common filesystems. The
// helpers here make them safe to use as a single path segment or object key
// while keeping the original extension.
package textutil
