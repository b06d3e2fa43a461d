// Package syncer replays the per-table mutation queues against the remote
// store and reconciles the local snapshots with the results.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/carledger/internal/casex"
	"github.com/dmitrijs2005/carledger/internal/client/cache"
	"github.com/dmitrijs2005/carledger/internal/client/local"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/queue"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

const DefaultMaxAttempts = 5

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownPolicy = errors.New("unknown queue policy")

	errUnresolvedID = fmt.Errorf("%w: record id was never assigned by the server", remote.ErrRejected)
	errUnknownOp    = fmt.Errorf("%w: unknown operation", remote.ErrRejected)
)

// Policy decides what happens to the queue after a replay.
type Policy int

const (
	// PolicyRetainFailed removes the entries that went through and keeps the
	// failed ones for the next run, up to MaxAttempts definitive refusals.
	PolicyRetainFailed Policy = iota
	// PolicyClearOnProgress empties the replayed part of the queue as soon
	// as one entry went through. Failed entries are lost.
	PolicyClearOnProgress
)

func (p Policy) String() string {
	switch p {
	case PolicyRetainFailed:
		return "retain"
	case PolicyClearOnProgress:
		return "clear"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "retain":
		return PolicyRetainFailed, nil
	case "clear":
		return PolicyClearOnProgress, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

type Engine struct {
	reg         *local.Registry
	remote      remote.Store
	logger      logging.Logger
	policy      Policy
	maxAttempts int

	mu sync.Mutex
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithMaxAttempts bounds how many definitive refusals an entry survives
// under PolicyRetainFailed. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func New(reg *local.Registry, rs remote.Store, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		reg:         reg,
		remote:      rs,
		logger:      logger.With("module", "syncer"),
		policy:      PolicyRetainFailed,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// SyncTable replays one table's queue in FIFO order. Failures are counted
// and do not stop the loop. The returned error is reserved for local
// storage problems and cancellation.
func (e *Engine) SyncTable(ctx context.Context, table string) (models.SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncTable(ctx, table)
}

// SyncAllTables syncs every table, parents before children, and sums the
// results. A table that cannot be synced does not stop the others.
func (e *Engine) SyncAllTables(ctx context.Context, userID string) (models.SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		total models.SyncResult
		errs  []error
	)
	for _, spec := range e.reg.Schema().Ordered() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := e.syncTable(ctx, spec.Name)
		total.Add(res)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", spec.Name, err))
		}
	}

	e.logger.Info(ctx, "sync finished", "user", userID,
		"synced", total.Synced, "errors", total.Errors,
		"dropped", total.Dropped, "deferred", total.Deferred)
	return total, errors.Join(errs...)
}

// PendingCount is the number of queued mutations across all tables.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.reg.PendingCount(ctx)
}

func (e *Engine) syncTable(ctx context.Context, name string) (models.SyncResult, error) {
	var res models.SyncResult

	t := e.reg.Table(name)
	if t == nil {
		return res, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	logger := e.logger.With("table", name)

	t.Lock()
	snapshot, err := t.Queue.Drain(ctx)
	t.Unlock()
	if err != nil {
		return res, err
	}
	if len(snapshot) == 0 {
		return res, nil
	}

	remapped := make(map[string]string)
	blocked := make(map[string]bool)
	var ctxErr error

	for _, entry := range snapshot {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}

		entry.Data = remapIDs(entry.Data, t.Spec, remapped)
		id := entry.RecordID()

		if blocked[id] {
			res.Deferred++
			continue
		}
		if ref, ok := unresolvedReference(entry, t.Spec); ok {
			logger.Debug(ctx, "entry waits for parent record", "entry", entry.ID, "record", id, "ref", ref)
			blocked[id] = true
			res.Deferred++
			continue
		}

		result, err := e.replay(ctx, name, entry)
		if err != nil {
			logger.Warn(ctx, "sync entry failed", "entry", entry.ID, "op", entry.Operation, "record", id, "error", err)
			res.Errors++
			blocked[id] = true
			if e.policy == PolicyRetainFailed {
				if dropped, cerr := e.commitFailure(ctx, t, entry, err); cerr != nil {
					return res, cerr
				} else if dropped {
					res.Dropped++
				}
			}
			continue
		}

		res.Synced++
		newID, cerr := e.commitSuccess(ctx, t, entry, result)
		if cerr != nil {
			return res, cerr
		}
		if entry.Operation == models.OpCreate && id != "" && newID != id {
			remapped[id] = newID
			res.Remapped++
		}
	}

	if e.policy == PolicyClearOnProgress && res.Synced > 0 {
		ids := make([]string, len(snapshot))
		for i, entry := range snapshot {
			ids[i] = entry.ID
		}
		t.Lock()
		err := t.Queue.Remove(ctx, ids...)
		t.Unlock()
		if err != nil {
			return res, err
		}
		if res.Errors > 0 {
			logger.Warn(ctx, "queue cleared with failed entries", "lost", res.Errors+res.Deferred)
		}
	}

	logger.Info(ctx, "table synced", "synced", res.Synced, "errors", res.Errors,
		"dropped", res.Dropped, "deferred", res.Deferred, "remapped", res.Remapped)
	return res, ctxErr
}

// replay issues the remote call for one entry. A nil record with a nil
// error means there is nothing to write back to the cache.
func (e *Engine) replay(ctx context.Context, table string, entry models.QueueEntry) (models.Record, error) {
	id := entry.RecordID()
	data := entry.Data.WithoutMarkers()

	switch entry.Operation {
	case models.OpCreate:
		created, err := e.remote.Insert(ctx, table, toRemote(data.ForInsert()))
		if err != nil {
			return nil, err
		}
		return toLocal(created), nil

	case models.OpUpdate:
		if models.IsTempID(id) {
			return nil, errUnresolvedID
		}
		delete(data, models.FieldID)
		updated, err := e.remote.Update(ctx, table, id, toRemote(data))
		if err != nil {
			return nil, err
		}
		return toLocal(updated), nil

	case models.OpDelete:
		// A temporary id never reached the server.
		if models.IsTempID(id) {
			return nil, nil
		}
		err := e.remote.Delete(ctx, table, id)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return nil, err
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownOp, entry.Operation)
}

// commitSuccess removes the entry and brings the cache in line with the
// remote result. For a CREATE whose id changed, every local reference to
// the old id is rewritten. It returns the record's id after the write.
func (e *Engine) commitSuccess(ctx context.Context, t *local.Table, entry models.QueueEntry, result models.Record) (string, error) {
	t.Lock()
	defer t.Unlock()

	oldID := entry.RecordID()
	newID := oldID
	if entry.Operation == models.OpCreate && result.ID() != "" {
		newID = result.ID()
	}

	if err := t.Queue.Remove(ctx, entry.ID); err != nil {
		return "", err
	}
	pending, err := t.Queue.Drain(ctx)
	if err != nil {
		return "", err
	}
	entries, err := t.Cache.Load(ctx)
	if err != nil {
		return "", err
	}

	if oldID != "" && newID != oldID {
		ids := map[string]string{oldID: newID}
		for i := range pending {
			pending[i].Data = remapIDs(pending[i].Data, t.Spec, ids)
		}
		for i := range entries {
			entries[i] = remapIDs(entries[i], t.Spec, ids)
		}
		if err := t.Queue.Replace(ctx, pending); err != nil {
			return "", err
		}
		if err := e.remapChildren(ctx, t.Spec.Name, ids); err != nil {
			return "", err
		}
	}

	stillPending := queue.References(pending, newID)
	switch {
	case entry.Operation == models.OpDelete:
		if !stillPending {
			entries, _ = cache.Remove(entries, newID)
		}
	case stillPending:
		// Later entries will overwrite the record again.
	default:
		entries = cache.Upsert(entries, result.WithoutMarkers())
	}

	if err := t.Cache.Save(ctx, entries); err != nil {
		return "", err
	}
	return newID, nil
}

// commitFailure bumps the attempt counter of a definitively refused entry
// and drops it once the budget is spent. Transient failures only record
// the error.
func (e *Engine) commitFailure(ctx context.Context, t *local.Table, entry models.QueueEntry, cause error) (bool, error) {
	t.Lock()
	defer t.Unlock()

	pending, err := t.Queue.Drain(ctx)
	if err != nil {
		return false, err
	}

	dropped := false
	kept := pending[:0]
	for _, p := range pending {
		if p.ID == entry.ID {
			p.LastError = cause.Error()
			if remote.Rejected(cause) {
				p.Attempts++
			}
			if remote.Rejected(cause) && p.Attempts >= e.maxAttempts {
				e.logger.Error(ctx, "dropping queue entry after repeated refusals",
					"table", t.Spec.Name, "entry", p.ID, "op", p.Operation, "record", p.RecordID(), "attempts", p.Attempts)
				dropped = true
				continue
			}
		}
		kept = append(kept, p)
	}
	return dropped, t.Queue.Replace(ctx, kept)
}

// remapChildren rewrites foreign keys to the parent's old ids in every
// child table, cache and queue. The parent's lock is held by the caller;
// child locks are always taken after the parent's.
func (e *Engine) remapChildren(ctx context.Context, parent string, ids map[string]string) error {
	for _, ref := range e.reg.Schema().Children(parent) {
		if ref.Table == parent {
			continue
		}
		child := e.reg.Table(ref.Table)
		if child == nil {
			continue
		}
		if err := remapField(ctx, child, ref.Field, ids); err != nil {
			return fmt.Errorf("remap %s.%s: %w", ref.Table, ref.Field, err)
		}
	}
	return nil
}

func remapField(ctx context.Context, t *local.Table, field string, ids map[string]string) error {
	t.Lock()
	defer t.Unlock()

	entries, err := t.Cache.Load(ctx)
	if err != nil {
		return err
	}
	changed := false
	for _, r := range entries {
		if to, ok := ids[models.Str(r[field])]; ok && r[field] != nil {
			r[field] = to
			changed = true
		}
	}
	if changed {
		if err := t.Cache.Save(ctx, entries); err != nil {
			return err
		}
	}

	pending, err := t.Queue.Drain(ctx)
	if err != nil {
		return err
	}
	changed = false
	for _, p := range pending {
		if to, ok := ids[models.Str(p.Data[field])]; ok && p.Data[field] != nil {
			p.Data[field] = to
			changed = true
		}
	}
	if changed {
		return t.Queue.Replace(ctx, pending)
	}
	return nil
}

// remapIDs returns r with its id and same-table references rewritten per
// ids. r itself is not modified.
func remapIDs(r models.Record, spec models.TableSpec, ids map[string]string) models.Record {
	if len(ids) == 0 || r == nil {
		return r
	}
	out, copied := r, false
	rewrite := func(field string) {
		if to, ok := ids[models.Str(out[field])]; ok && out[field] != nil {
			if !copied {
				out, copied = r.Clone(), true
			}
			out[field] = to
		}
	}
	rewrite(models.FieldID)
	for field, target := range spec.References {
		if target == spec.Name {
			rewrite(field)
		}
	}
	return out
}

// unresolvedReference reports a foreign key that still holds a temporary
// id of another table: the parent has not reached the server yet.
func unresolvedReference(entry models.QueueEntry, spec models.TableSpec) (string, bool) {
	if entry.Operation == models.OpDelete {
		return "", false
	}
	for field, target := range spec.References {
		if target == spec.Name {
			continue
		}
		if v := models.Str(entry.Data[field]); models.IsTempID(v) {
			return field, true
		}
	}
	return "", false
}

func toLocal(r models.Record) models.Record {
	return models.Record(casex.LocalMap(r))
}

func toRemote(r models.Record) models.Record {
	return models.Record(casex.RemoteMap(r))
}
