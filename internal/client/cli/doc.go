// Package cli provides the interactive carledger command-line client.
//
// It wires configuration, the local key-value store, the remote record
// store, the per-table gateways, the sync engine and the connectivity
// monitor, then runs a REPL over them. Every write goes through a gateway,
// so it succeeds offline too and is replayed once the server is reachable.
//
// Key features:
//   - List / Get / Add / Update / Delete records of any table
//   - Typed car data input (fuel, insurance, inspection)
//   - Manual sync, pending queue sizes and status
//   - One-time migration of legacy local-only records
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, assemble, and runREPL for details.
package cli
