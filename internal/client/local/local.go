// Package local ties one table's cache and queue together behind a single
// lock, so every read-modify-write of either snapshot is serialized.
package local

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/carledger/internal/client/cache"
	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/queue"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

type Table struct {
	Spec  models.TableSpec
	Cache *cache.Cache
	Queue *queue.Queue

	mu sync.Mutex
}

func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// Registry owns one Table per schema entry.
type Registry struct {
	store  kvstore.Store
	schema models.Schema
	tables map[string]*Table
}

func NewRegistry(store kvstore.Store, schema models.Schema, logger logging.Logger, opts ...queue.Option) *Registry {
	r := &Registry{
		store:  store,
		schema: schema,
		tables: make(map[string]*Table, len(schema)),
	}
	for _, spec := range schema {
		r.tables[spec.Name] = &Table{
			Spec:  spec,
			Cache: cache.New(store, spec.Name),
			Queue: queue.New(store, spec.Name, logger, opts...),
		}
	}
	return r
}

// Table returns the named table, or nil if the schema does not know it.
func (r *Registry) Table(name string) *Table {
	return r.tables[name]
}

func (r *Registry) Schema() models.Schema {
	return r.schema
}

func (r *Registry) Store() kvstore.Store {
	return r.store
}

// PendingCount sums the queue lengths of every table. It is computed on
// each call.
func (r *Registry) PendingCount(ctx context.Context) (int, error) {
	total := 0
	for _, spec := range r.schema {
		n, err := r.tables[spec.Name].Queue.Len(ctx)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Pending returns per-table queue lengths.
func (r *Registry) Pending(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(r.schema))
	for _, spec := range r.schema {
		n, err := r.tables[spec.Name].Queue.Len(ctx)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = n
	}
	return out, nil
}
