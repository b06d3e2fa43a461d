// Package dbx holds the database handle shared by the client KV store
// (SQLite) and the server record repository (Postgres).
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is what the stores need from database/sql. *sql.DB, *sql.Conn and
// *sql.Tx all satisfy it, so a store can be pointed at a transaction in
// tests or at a pinned connection for in-memory SQLite.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Conn)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
