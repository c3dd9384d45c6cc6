// Package attachments implements the two download stages: ticket-level
// attachments and conversation attachments.
//
// Both stages read the producer's ticket artifact, copy every listed file
// into the configured storage sink, and report a Done mapping of attachment
// id to completion time. When a pass yields nothing the ticket is re-fetched
// once, since presigned links expire, and the pass is repeated. Conversation
// attachments first consult the conversations stage and inherit its Empty
// without contacting the source.
package attachments
