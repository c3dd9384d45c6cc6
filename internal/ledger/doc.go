// Package ledger owns the coordination ledger: one record per ticket with a
// status field per enrichment stage.
//
// Every stage field moves Unset -> InProgress -> {Done | Empty} and never
// backwards. ClaimNext performs the only Unset -> InProgress transition and
// does so inside one lock hold, so at most one worker across all processes
// observes a given record+stage as Unset. SetStatus is the only way a field
// leaves InProgress; Finalize resolves claims abandoned by crashed workers.
//
// The Store interface is the abstraction boundary. FileStore keeps the ledger
// as a single JSON document guarded by a filelock.Lock; the sqlitestore
// subpackage provides an embedded database with the same semantics.
package ledger
