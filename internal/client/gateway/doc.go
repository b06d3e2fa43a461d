// Package gateway is the single entry point for record reads and writes.
//
// Every operation is remote-optimistic: it tries the remote store first and
// only on failure falls back to the local cache plus the mutation queue, so
// a flaky connection degrades per call instead of requiring a connectivity
// check up front.
//
//	Create     remote insert; else cache with a temporary id + CREATE entry
//	FindByID   remote read; else the cached entry tagged _fromCache
//	FindByUser remote list replaces the snapshot; else cached entries
//	Update     remote update; else merge into the cached entry + UPDATE entry
//	Delete     remote delete; else drop the cached entry + DELETE entry
//
// Transient remote failures never reach the caller. Update and Delete of a
// record the cache has never seen fail with ErrNotFoundLocally.
//
// A record that still has queued mutations is always written through the
// queue, even when the remote store is reachable, so that its mutations
// reach the server in the order they were made.
package gateway
