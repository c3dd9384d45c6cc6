// Package storage writes downloaded attachments to their destination: the
// local filesystem, an S3 bucket, or a GCS bucket. Every sink addresses
// objects by a relative key of the form "{ticket_id}/{file name}" and reports
// the public location recorded in the attachment tracker.
package storage
