// Package cache is the per-table entity snapshot: the last known good copy
// of every record the local user has touched, stored whole under
// offline_<table>.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
)

const keyPrefix = "offline_"

func Key(table string) string {
	return keyPrefix + table
}

type Cache struct {
	store kvstore.Store
	table string
}

func New(store kvstore.Store, table string) *Cache {
	return &Cache{store: store, table: table}
}

// Load returns the full snapshot, empty if the table was never saved.
func (c *Cache) Load(ctx context.Context) ([]models.Record, error) {
	b, err := c.store.Get(ctx, Key(c.table))
	if err != nil {
		return nil, fmt.Errorf("failed to load cache %s: %w", c.table, err)
	}
	if len(b) == 0 {
		return []models.Record{}, nil
	}

	var entries []models.Record
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache %s: %w", c.table, err)
	}
	if entries == nil {
		entries = []models.Record{}
	}
	return entries, nil
}

// Save replaces the whole snapshot.
func (c *Cache) Save(ctx context.Context, entries []models.Record) error {
	if entries == nil {
		entries = []models.Record{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache %s: %w", c.table, err)
	}
	if err := c.store.Set(ctx, Key(c.table), b); err != nil {
		return fmt.Errorf("failed to save cache %s: %w", c.table, err)
	}
	return nil
}

// IndexOf returns the position of the entry with id, or -1.
func IndexOf(entries []models.Record, id string) int {
	for i, e := range entries {
		if e.ID() == id {
			return i
		}
	}
	return -1
}

// Upsert replaces the entry with rec's id or appends rec, keeping at most
// one entry per id.
func Upsert(entries []models.Record, rec models.Record) []models.Record {
	if i := IndexOf(entries, rec.ID()); i >= 0 {
		entries[i] = rec
		return entries
	}
	return append(entries, rec)
}

// Remove drops the entry with id. The second result reports whether it
// was present.
func Remove(entries []models.Record, id string) ([]models.Record, bool) {
	i := IndexOf(entries, id)
	if i < 0 {
		return entries, false
	}
	return append(entries[:i], entries[i+1:]...), true
}
