package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/carledger/internal/casex"
	"github.com/dmitrijs2005/carledger/internal/client/cache"
	"github.com/dmitrijs2005/carledger/internal/client/local"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/queue"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

var (
	ErrNotFoundLocally = errors.New("not found in cache")
	ErrUnknownTable    = errors.New("unknown table")
)

type Gateway struct {
	table  *local.Table
	remote remote.Store
	logger logging.Logger
	now    func() time.Time
	newRef func() string
}

type Option func(*Gateway)

// WithClock overrides the clock used for temporary ids.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithRefs overrides the client ref generator.
func WithRefs(newRef func() string) Option {
	return func(g *Gateway) { g.newRef = newRef }
}

func New(table *local.Table, rs remote.Store, logger logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		table:  table,
		remote: rs,
		logger: logger.With("module", "gateway", "table", table.Spec.Name),
		now:    time.Now,
		newRef: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string {
	return g.table.Spec.Name
}

func toLocal(r models.Record) models.Record {
	return models.Record(casex.LocalMap(r))
}

func toRemote(r models.Record) models.Record {
	return models.Record(casex.RemoteMap(r))
}

// Create never fails: when the remote insert does not go through, the
// record is kept locally with a temporary id (unless data carries one) and
// a CREATE entry is queued. The queued entry keeps the client ref sent with
// the first attempt, so replaying an insert whose reply was lost resolves
// to the record the server already holds.
func (g *Gateway) Create(ctx context.Context, data models.Record) models.Record {
	rec := data.WithoutMarkers()
	if rec == nil {
		rec = models.Record{}
	}
	delete(rec, models.FieldClientRef)
	ref := g.newRef()

	wire := rec.ForInsert()
	wire[models.FieldClientRef] = ref

	created, err := g.remote.Insert(ctx, g.Name(), toRemote(wire))
	if err == nil {
		out := toLocal(created)
		g.table.Lock()
		defer g.table.Unlock()
		g.upsertCached(ctx, out)
		return out.Clone()
	}

	g.logger.Warn(ctx, "remote insert failed, storing offline", "error", err)

	g.table.Lock()
	defer g.table.Unlock()

	entries, lerr := g.table.Cache.Load(ctx)
	if lerr != nil {
		g.logger.Error(ctx, "cache unavailable for offline create", "error", lerr)
	}

	if rec.ID() == "" {
		rec[models.FieldID] = g.tempID(entries)
	}
	rec[models.MarkerOffline] = true

	if lerr == nil {
		if serr := g.table.Cache.Save(ctx, cache.Upsert(entries, rec)); serr != nil {
			g.logger.Error(ctx, "failed to cache offline record", "id", rec.ID(), "error", serr)
		}
	}

	queued := rec.Clone()
	queued[models.FieldClientRef] = ref
	g.table.Queue.Enqueue(ctx, models.OpCreate, queued)

	return rec.Clone()
}

// FindByID returns (nil, nil) when neither the remote store nor the cache
// knows id.
func (g *Gateway) FindByID(ctx context.Context, id string) (models.Record, error) {
	if !models.IsTempID(id) {
		found, err := g.remote.Get(ctx, g.Name(), id)
		if err == nil {
			rec := toLocal(found)

			g.table.Lock()
			defer g.table.Unlock()

			if g.pending(ctx, id) {
				return g.cachedCopy(ctx, id)
			}
			g.upsertCached(ctx, rec)
			return rec.Clone(), nil
		}
		g.logger.Debug(ctx, "remote read failed, using cache", "id", id, "error", err)
	}

	g.table.Lock()
	defer g.table.Unlock()
	return g.cachedCopy(ctx, id)
}

// FindByUser lists the user's records. A successful remote read replaces
// the cached snapshot; records with queued mutations keep their local
// version. Offline, it returns cached entries that are either owned by
// userID or were written locally.
func (g *Gateway) FindByUser(ctx context.Context, userID string) ([]models.Record, error) {
	ownerField := g.table.Spec.OwnerField

	found, err := g.remote.ListByOwner(ctx, g.Name(), casex.SnakeKey(ownerField), userID)
	if err == nil {
		g.table.Lock()
		defer g.table.Unlock()

		cached, cerr := g.table.Cache.Load(ctx)
		if cerr != nil {
			g.logger.Warn(ctx, "cache unreadable, overwriting", "error", cerr)
			cached = nil
		}
		pending, qerr := g.table.Queue.Drain(ctx)
		if qerr != nil {
			g.logger.Warn(ctx, "queue unreadable during refresh", "error", qerr)
			pending = nil
		}

		snapshot := reconcile(found, cached, pending)
		if serr := g.table.Cache.Save(ctx, snapshot); serr != nil {
			g.logger.Error(ctx, "failed to save refreshed snapshot", "error", serr)
		}

		out := make([]models.Record, len(snapshot))
		for i, r := range snapshot {
			out[i] = r.Clone()
		}
		return out, nil
	}

	g.logger.Debug(ctx, "remote list failed, using cache", "error", err)

	g.table.Lock()
	entries, lerr := g.table.Cache.Load(ctx)
	g.table.Unlock()
	if lerr != nil {
		return nil, lerr
	}

	out := []models.Record{}
	for _, e := range entries {
		if e.IsOffline() || models.Str(e[ownerField]) == userID {
			rec := e.Clone()
			rec[models.MarkerFromCache] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

// Update applies updates to record id. Offline, the cached entry is merged
// (last write wins per field), marked offline and an UPDATE entry queued.
func (g *Gateway) Update(ctx context.Context, id string, updates models.Record) (models.Record, error) {
	patch := updates.WithoutMarkers()
	if patch == nil {
		patch = models.Record{}
	}
	delete(patch, models.FieldID)

	if !g.mustQueue(ctx, id) {
		updated, err := g.remote.Update(ctx, g.Name(), id, toRemote(patch))
		if err == nil {
			rec := toLocal(updated)
			g.table.Lock()
			defer g.table.Unlock()
			g.upsertCached(ctx, rec)
			return rec.Clone(), nil
		}
		g.logger.Warn(ctx, "remote update failed, storing offline", "id", id, "error", err)
	}

	g.table.Lock()
	defer g.table.Unlock()

	entries, err := g.table.Cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	i := cache.IndexOf(entries, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFoundLocally, g.Name(), id)
	}

	merged := entries[i].Merge(patch)
	merged[models.FieldID] = id
	merged[models.MarkerOffline] = true
	delete(merged, models.MarkerFromCache)
	entries[i] = merged

	if err := g.table.Cache.Save(ctx, entries); err != nil {
		return nil, err
	}

	queued := patch.Clone()
	queued[models.FieldID] = id
	g.table.Queue.Enqueue(ctx, models.OpUpdate, queued)

	return merged.Clone(), nil
}

// Delete removes record id. A remote "not found" counts as deleted.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	if !g.mustQueue(ctx, id) {
		err := g.remote.Delete(ctx, g.Name(), id)
		if err == nil || errors.Is(err, remote.ErrNotFound) {
			g.table.Lock()
			defer g.table.Unlock()

			entries, lerr := g.table.Cache.Load(ctx)
			if lerr != nil {
				g.logger.Error(ctx, "cache unavailable after remote delete", "id", id, "error", lerr)
				return nil
			}
			if entries, ok := cache.Remove(entries, id); ok {
				if serr := g.table.Cache.Save(ctx, entries); serr != nil {
					g.logger.Error(ctx, "failed to drop deleted record from cache", "id", id, "error", serr)
				}
			}
			return nil
		}
		g.logger.Warn(ctx, "remote delete failed, storing offline", "id", id, "error", err)
	}

	g.table.Lock()
	defer g.table.Unlock()

	entries, err := g.table.Cache.Load(ctx)
	if err != nil {
		return err
	}
	entries, ok := cache.Remove(entries, id)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFoundLocally, g.Name(), id)
	}
	if err := g.table.Cache.Save(ctx, entries); err != nil {
		return err
	}

	g.table.Queue.Enqueue(ctx, models.OpDelete, models.Record{models.FieldID: id})
	return nil
}

// mustQueue reports whether writes to id have to go through the queue:
// temporary ids are unknown remotely, and records with queued mutations
// must not be overtaken.
func (g *Gateway) mustQueue(ctx context.Context, id string) bool {
	if models.IsTempID(id) {
		return true
	}
	g.table.Lock()
	defer g.table.Unlock()
	return g.pending(ctx, id)
}

// pending reports whether the queue references id. Caller holds the lock.
func (g *Gateway) pending(ctx context.Context, id string) bool {
	entries, err := g.table.Queue.Drain(ctx)
	if err != nil {
		g.logger.Warn(ctx, "queue unreadable", "error", err)
		return false
	}
	return queue.References(entries, id)
}

// upsertCached stores rec in the snapshot. Caller holds the lock.
func (g *Gateway) upsertCached(ctx context.Context, rec models.Record) {
	entries, err := g.table.Cache.Load(ctx)
	if err != nil {
		g.logger.Error(ctx, "cache unavailable", "id", rec.ID(), "error", err)
		return
	}
	if err := g.table.Cache.Save(ctx, cache.Upsert(entries, rec.Clone())); err != nil {
		g.logger.Error(ctx, "failed to cache record", "id", rec.ID(), "error", err)
	}
}

// cachedCopy returns the cached entry tagged _fromCache. Caller holds the
// lock.
func (g *Gateway) cachedCopy(ctx context.Context, id string) (models.Record, error) {
	entries, err := g.table.Cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	i := cache.IndexOf(entries, id)
	if i < 0 {
		return nil, nil
	}
	rec := entries[i].Clone()
	rec[models.MarkerFromCache] = true
	return rec, nil
}

// tempID picks temp_<now>, stepping forward a millisecond at a time until
// it does not collide with a cached id.
func (g *Gateway) tempID(entries []models.Record) string {
	now := g.now()
	id := models.TempID(now)
	for cache.IndexOf(entries, id) >= 0 {
		now = now.Add(time.Millisecond)
		id = models.TempID(now)
	}
	return id
}

// reconcile builds the snapshot after a remote list: remote records first
// in remote order, with queued local state taking precedence, followed by
// locally written records the remote store does not have yet.
func reconcile(remoteRecs, cached []models.Record, pending []models.QueueEntry) []models.Record {
	touched := make(map[string]bool, len(pending))
	deleted := make(map[string]bool)
	for _, e := range pending {
		id := e.RecordID()
		touched[id] = true
		deleted[id] = e.Operation == models.OpDelete
	}

	snapshot := make([]models.Record, 0, len(remoteRecs))
	seen := make(map[string]bool, len(remoteRecs))
	for _, r := range remoteRecs {
		rec := toLocal(r)
		id := rec.ID()
		if deleted[id] {
			continue
		}
		if touched[id] {
			if i := cache.IndexOf(cached, id); i >= 0 {
				rec = cached[i]
			}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		snapshot = append(snapshot, rec)
	}

	for _, c := range cached {
		id := c.ID()
		if touched[id] && !deleted[id] && !seen[id] {
			seen[id] = true
			snapshot = append(snapshot, c)
		}
	}
	return snapshot
}
