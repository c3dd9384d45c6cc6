// Package statusapi exposes read-only ledger progress over HTTP and provides
// the matching client used by the CLI when a run is already serving status.
//
// The server is optional: it starts only when status.bind is configured. All
// views are computed from committed ledger state, so they never take part in
// the claim protocol beyond a short read under the ledger lock.
package statusapi
