// Package remote is the client's view of the hosted record store: a
// request/response contract (insert, select by id, select by owner,
// update, delete) plus its gRPC implementation.
//
// Records crossing this boundary use the wire naming convention
// (snake_case); key conversion is the caller's job.
package remote

import (
	"context"

	"github.com/dmitrijs2005/carledger/internal/client/models"
)

type Store interface {
	// Insert creates a record and returns it as stored, including the id
	// the store assigned when data carried none.
	Insert(ctx context.Context, table string, data models.Record) (models.Record, error)

	// Get reads one record. ErrNotFound when it does not exist.
	Get(ctx context.Context, table, id string) (models.Record, error)

	// ListByOwner returns every record of table whose ownerField equals owner.
	ListByOwner(ctx context.Context, table, ownerField, owner string) ([]models.Record, error)

	// Update applies patch to the record and returns the result.
	Update(ctx context.Context, table, id string, patch models.Record) (models.Record, error)

	Delete(ctx context.Context, table, id string) error

	Ping(ctx context.Context) error
}
