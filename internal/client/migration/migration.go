// Package migration moves records that were only ever stored locally (the
// legacy local_<table> keys) into the synced tables, once per user.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/carledger/internal/client/gateway"
	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

const (
	legacyPrefix = "local_"
	markerPrefix = "migration_done_"
)

func LegacyKey(table string) string {
	return legacyPrefix + table
}

func MarkerKey(userID string) string {
	return markerPrefix + userID
}

// Result summarizes a migration. MigratedCount counts every record handed
// to the create path; Queued is the subset that could not reach the server
// and waits in the mutation queue.
type Result struct {
	Success       bool   `json:"success"`
	MigratedCount int    `json:"migratedCount"`
	Queued        int    `json:"queued"`
	AlreadyDone   bool   `json:"alreadyDone,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (r *Result) add(o Result) {
	r.MigratedCount += o.MigratedCount
	r.Queued += o.Queued
}

type Runner struct {
	store    kvstore.Store
	gateways *gateway.Set
	schema   models.Schema
	logger   logging.Logger
	now      func() time.Time
}

func New(store kvstore.Store, gateways *gateway.Set, schema models.Schema, logger logging.Logger) *Runner {
	return &Runner{
		store:    store,
		gateways: gateways,
		schema:   schema,
		logger:   logger.With("module", "migration"),
		now:      time.Now,
	}
}

// MigrateLocalData creates every record as a car owned by userID. Nothing
// is rolled back: records that went through stay, whatever happens to the
// rest.
func (r *Runner) MigrateLocalData(ctx context.Context, userID string, records []models.Record) Result {
	res, _ := r.migrate(ctx, models.TableCars, userID, records)
	return res
}

// RunOnce migrates the legacy records of every table, parents first, and
// writes the per-user marker when all tables are done. Foreign keys of
// child records follow the ids their parents received.
func (r *Runner) RunOnce(ctx context.Context, userID string) (Result, error) {
	done, err := r.store.Get(ctx, MarkerKey(userID))
	if err != nil {
		return Result{}, err
	}
	if done != nil {
		return Result{Success: true, AlreadyDone: true}, nil
	}

	total := Result{Success: true}
	ids := make(map[string]map[string]string)

	for _, spec := range r.schema.Ordered() {
		records, err := r.legacy(ctx, spec.Name)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			continue
		}
		for i, rec := range records {
			records[i] = remapReferences(rec, spec, ids)
		}

		res, remapped := r.migrate(ctx, spec.Name, userID, records)
		total.add(res)
		ids[spec.Name] = remapped
		if !res.Success {
			total.Success = false
			total.Error = res.Error
			if err := r.keepLegacy(ctx, spec.Name, records[res.MigratedCount:]); err != nil {
				return total, err
			}
			return total, nil
		}

		if err := r.store.Delete(ctx, LegacyKey(spec.Name)); err != nil {
			return total, fmt.Errorf("clear legacy %s: %w", spec.Name, err)
		}
		r.logger.Info(ctx, "legacy records migrated", "table", spec.Name, "count", res.MigratedCount, "queued", res.Queued)
	}

	stamp := strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := r.store.Set(ctx, MarkerKey(userID), []byte(stamp)); err != nil {
		return total, fmt.Errorf("write migration marker: %w", err)
	}
	return total, nil
}

// migrate creates records in order through the table's gateway and
// returns the ids that changed on the way.
func (r *Runner) migrate(ctx context.Context, table, userID string, records []models.Record) (Result, map[string]string) {
	remapped := make(map[string]string)

	gw, err := r.gateways.Get(table)
	if err != nil {
		return Result{Error: err.Error()}, remapped
	}
	ownerField := models.OwnerField
	if spec, ok := r.schema.Table(table); ok && spec.OwnerField != "" {
		ownerField = spec.OwnerField
	}

	res := Result{Success: true}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			res.Success = false
			res.Error = err.Error()
			break
		}

		data := rec.WithoutMarkers()
		if data == nil {
			data = models.Record{}
		}
		data[ownerField] = userID
		oldID := data.ID()
		delete(data, models.FieldID)

		created := gw.Create(ctx, data)
		res.MigratedCount++
		if created.IsOffline() {
			res.Queued++
		}
		if oldID != "" && created.ID() != oldID {
			remapped[oldID] = created.ID()
		}
	}
	return res, remapped
}

func (r *Runner) legacy(ctx context.Context, table string) ([]models.Record, error) {
	b, err := r.store.Get(ctx, LegacyKey(table))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	var records []models.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode legacy %s: %w", table, err)
	}
	return records, nil
}

// keepLegacy rewrites the legacy key with the records not migrated yet.
func (r *Runner) keepLegacy(ctx context.Context, table string, rest []models.Record) error {
	if len(rest) == 0 {
		return r.store.Delete(ctx, LegacyKey(table))
	}
	b, err := json.Marshal(rest)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, LegacyKey(table), b)
}

func remapReferences(rec models.Record, spec models.TableSpec, ids map[string]map[string]string) models.Record {
	for field, parent := range spec.References {
		if to, ok := ids[parent][models.Str(rec[field])]; ok {
			rec[field] = to
		}
	}
	return rec
}
