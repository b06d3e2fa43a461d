package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Tables(ctx context.Context) error
	List(ctx context.Context, table string) error
	Get(ctx context.Context, table, id string) error
	Add(ctx context.Context, table string) error
	Update(ctx context.Context, table, id string) error
	Delete(ctx context.Context, table, id string) error
	CarData(ctx context.Context, carID string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Pending(ctx context.Context) error
	Migrate(ctx context.Context) error
}

const helpText = `Available commands:
  tables                     list known tables
  (l)ist <table>             list your records
  get <table> <id>           show one record
  add <table>                create a record (name=value lines)
  update <table> <id>        change fields of a record
  delete <table> <id>        delete a record
  cardata <carId>            add fuel, insurance or inspection data
  sync                       replay queued changes now
  status                     connectivity and sync state
  pending                    queued changes per table
  migrate                    move legacy local-only records
  exit | quit                leave the program`

// runREPL starts a simple read–eval–print loop for the carledger client.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on 'a'. Commands that read further input (add,
// update, cardata) consume the following lines from the same reader.
// Unknown commands and missing arguments are reported back to the user.
// The loop exits on EOF, when ctx is done, or when the user types "exit"
// or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("carledger %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		need := func(n int, usage string) bool {
			if len(args) < n {
				printlnFn("Usage:", usage)
				return false
			}
			return true
		}

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "tables":
			_ = a.Tables(ctx)

		case "l", "list":
			if need(1, "list <table>") {
				_ = a.List(ctx, args[0])
			}

		case "get":
			if need(2, "get <table> <id>") {
				_ = a.Get(ctx, args[0], args[1])
			}

		case "add":
			if need(1, "add <table>") {
				_ = a.Add(ctx, args[0])
			}

		case "update":
			if need(2, "update <table> <id>") {
				_ = a.Update(ctx, args[0], args[1])
			}

		case "delete":
			if need(2, "delete <table> <id>") {
				_ = a.Delete(ctx, args[0], args[1])
			}

		case "cardata":
			if need(1, "cardata <carId>") {
				_ = a.CarData(ctx, args[0])
			}

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "pending":
			_ = a.Pending(ctx)

		case "migrate":
			_ = a.Migrate(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
