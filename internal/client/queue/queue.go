// Package queue is the per-table mutation log: writes that could not be
// confirmed against the remote store, kept in append order under
// sync_queue_<table> until the sync engine replays them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/logging"
	"github.com/google/uuid"
)

const keyPrefix = "sync_queue_"

func Key(table string) string {
	return keyPrefix + table
}

type Queue struct {
	store  kvstore.Store
	table  string
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Queue)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDs overrides the entry id generator.
func WithIDs(newID func() string) Option {
	return func(q *Queue) { q.newID = newID }
}

func New(store kvstore.Store, table string, logger logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		store:  store,
		table:  table,
		logger: logger.With("module", "queue", "table", table),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a mutation. Storage failures are logged and swallowed:
// the cache already holds the user-visible state, only the later remote
// sync is at risk.
func (q *Queue) Enqueue(ctx context.Context, op models.Operation, data models.Record) {
	entries, err := q.Drain(ctx)
	if err != nil {
		q.logger.Error(ctx, "enqueue failed, mutation not queued", "op", op, "record", data.ID(), "error", err)
		return
	}

	entries = append(entries, models.QueueEntry{
		Operation: op,
		Data:      data.WithoutMarkers(),
		Timestamp: q.now().UnixMilli(),
		ID:        q.newID(),
	})

	if err := q.Replace(ctx, entries); err != nil {
		q.logger.Error(ctx, "enqueue failed, mutation not queued", "op", op, "record", data.ID(), "error", err)
		return
	}
	q.logger.Debug(ctx, "mutation queued", "op", op, "record", data.ID(), "pending", len(entries))
}

// Drain returns the full ordered queue without clearing it.
func (q *Queue) Drain(ctx context.Context) ([]models.QueueEntry, error) {
	b, err := q.store.Get(ctx, Key(q.table))
	if err != nil {
		return nil, fmt.Errorf("failed to read queue %s: %w", q.table, err)
	}
	if len(b) == 0 {
		return []models.QueueEntry{}, nil
	}

	var entries []models.QueueEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode queue %s: %w", q.table, err)
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	return entries, nil
}

// Replace persists entries as the whole queue.
func (q *Queue) Replace(ctx context.Context, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return q.Clear(ctx)
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode queue %s: %w", q.table, err)
	}
	if err := q.store.Set(ctx, Key(q.table), b); err != nil {
		return fmt.Errorf("failed to write queue %s: %w", q.table, err)
	}
	return nil
}

func (q *Queue) Clear(ctx context.Context) error {
	if err := q.store.Delete(ctx, Key(q.table)); err != nil {
		return fmt.Errorf("failed to clear queue %s: %w", q.table, err)
	}
	return nil
}

// Remove drops the entries with the given entry ids, keeping the order of
// the rest (including anything appended since the caller last drained).
func (q *Queue) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	entries, err := q.Drain(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	return q.Replace(ctx, kept)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	entries, err := q.Drain(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// References reports whether any pending entry targets record id.
func References(entries []models.QueueEntry, id string) bool {
	for _, e := range entries {
		if e.RecordID() == id {
			return true
		}
	}
	return false
}
