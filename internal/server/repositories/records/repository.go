// Package records provides the PostgreSQL-backed storage of the generic
// record store: one row per (table, id), body kept as jsonb.
package records

import (
	"context"

	"github.com/dmitrijs2005/carledger/internal/server/models"
)

// Repository defines persistence operations for records.
//
// Implementations must return common.ErrNotFound when a keyed row does not
// exist and common.ErrAlreadyExists when Insert hits an existing key.
type Repository interface {
	Insert(ctx context.Context, rec *models.Record) (*models.Record, error)
	Get(ctx context.Context, table, id string) (*models.Record, error)
	ListByOwner(ctx context.Context, table, ownerID string) ([]*models.Record, error)
	// Update merges patch into the stored body (top-level keys, last write
	// wins) and returns the result.
	Update(ctx context.Context, table, id string, patch map[string]any) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
}
