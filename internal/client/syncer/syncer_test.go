package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/carledger/internal/client/gateway"
	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/local"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/queue"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/dmitrijs2005/carledger/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/carledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	reg    *local.Registry
	remote *remotetest.Store
	engine *Engine
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	n := 0
	reg := local.NewRegistry(kvstore.NewMemoryStore(), models.DefaultSchema(), logging.Nop(),
		queue.WithIDs(func() string { n++; return fmt.Sprintf("q%d", n) }),
	)
	rs := remotetest.New()
	return &env{reg: reg, remote: rs, engine: New(reg, rs, logging.Nop(), opts...)}
}

// gateway returns a gateway whose temporary ids start at temp_<ms>.
func (v *env) gateway(table string, ms int64) *gateway.Gateway {
	return gateway.New(v.reg.Table(table), v.remote, logging.Nop(),
		gateway.WithClock(func() time.Time { return time.UnixMilli(ms) }))
}

func (v *env) queued(t *testing.T, table string) []models.QueueEntry {
	t.Helper()
	entries, err := v.reg.Table(table).Queue.Drain(context.Background())
	require.NoError(t, err)
	return entries
}

func (v *env) cached(t *testing.T, table string) []models.Record {
	t.Helper()
	entries, err := v.reg.Table(table).Cache.Load(context.Background())
	require.NoError(t, err)
	return entries
}

func rejectBrand(brand string) func(remotetest.Call) error {
	return func(c remotetest.Call) error {
		if c.Op == "insert" && c.Data["brand"] == brand {
			return fmt.Errorf("%w: brand %s not allowed", remote.ErrRejected, brand)
		}
		return nil
	}
}

func TestSyncTable_OfflineCreateRoundTrip(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	rec := cars.Create(ctx, models.Record{"brand": "Toyota", "model": "Corolla"})
	require.True(t, rec.IsOffline())
	require.Len(t, v.queued(t, models.TableCars), 1)
	v.remote.SetOffline(false)

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 1, Remapped: 1}, res)

	assert.Empty(t, v.queued(t, models.TableCars))
	stored := v.remote.Records(models.TableCars)
	assert.Equal(t, []models.Record{{"id": "srv-1", "brand": "Toyota", "model": "Corolla"}}, stored)
	assert.Equal(t, stored, v.cached(t, models.TableCars), "synced state must match a direct remote write")
}

func TestSyncTable_CreateThenUpdateFollowsRemap(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	rec := cars.Create(ctx, models.Record{"brand": "Toyota", "model": "Corolla"})
	_, err := cars.Update(ctx, rec.ID(), models.Record{"model": "Camry"})
	require.NoError(t, err)
	v.remote.SetOffline(false)
	before := len(v.remote.Calls())

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 2, Remapped: 1}, res)

	calls := v.remote.Calls()[before:]
	require.Len(t, calls, 2)
	assert.Equal(t, "update", calls[1].Op)
	assert.Equal(t, "srv-1", calls[1].ID)

	assert.Empty(t, v.queued(t, models.TableCars))
	assert.Equal(t, []models.Record{{"id": "srv-1", "brand": "Toyota", "model": "Camry"}}, v.cached(t, models.TableCars))
}

func TestSyncTable_PartialFailureRetainsFailedEntry(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "A"})
	cars.Create(ctx, models.Record{"brand": "B"})
	cars.Create(ctx, models.Record{"brand": "C"})
	v.remote.SetOffline(false)
	v.remote.SetFailFn(rejectBrand("B"))

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Errors)

	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Equal(t, "temp_1001", q[0].RecordID())
	assert.Equal(t, 1, q[0].Attempts)
	assert.Contains(t, q[0].LastError, "not allowed")

	cached := v.cached(t, models.TableCars)
	require.Len(t, cached, 3)
	assert.Equal(t, "srv-1", cached[0].ID())
	assert.False(t, cached[0].IsOffline())
	assert.Equal(t, "temp_1001", cached[1].ID())
	assert.True(t, cached[1].IsOffline())
	assert.Equal(t, "srv-2", cached[2].ID())
}

func TestSyncTable_PartialFailureClearOnProgress(t *testing.T) {
	v := newEnv(t, WithPolicy(PolicyClearOnProgress))
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "A"})
	cars.Create(ctx, models.Record{"brand": "B"})
	cars.Create(ctx, models.Record{"brand": "C"})
	v.remote.SetOffline(false)
	v.remote.SetFailFn(rejectBrand("B"))

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Errors)
	assert.Empty(t, v.queued(t, models.TableCars), "the failed entry is discarded with the rest")
}

func TestSyncTable_ClearOnProgressKeepsQueueWithoutProgress(t *testing.T) {
	v := newEnv(t, WithPolicy(PolicyClearOnProgress))
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "B"})
	v.remote.SetOffline(false)
	v.remote.SetFailFn(rejectBrand("B"))

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Errors: 1}, res)

	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Zero(t, q[0].Attempts)
}

func TestSyncTable_TransientFailureKeepsAttempts(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "A"})

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Errors: 1}, res)

	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Zero(t, q[0].Attempts)
	assert.NotEmpty(t, q[0].LastError)
}

func TestSyncTable_DropsAfterMaxAttempts(t *testing.T) {
	v := newEnv(t, WithMaxAttempts(2))
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "B"})
	v.remote.SetOffline(false)
	v.remote.SetFailFn(rejectBrand("B"))

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Zero(t, res.Dropped)
	require.Len(t, v.queued(t, models.TableCars), 1)

	res, err = v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Errors: 1, Dropped: 1}, res)
	assert.Empty(t, v.queued(t, models.TableCars))
}

func TestSyncTable_DefersLaterEntriesOfFailedRecord(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	rec := cars.Create(ctx, models.Record{"brand": "B"})
	_, err := cars.Update(ctx, rec.ID(), models.Record{"model": "X"})
	require.NoError(t, err)
	cars.Create(ctx, models.Record{"brand": "C"})
	v.remote.SetOffline(false)
	v.remote.SetFailFn(rejectBrand("B"))

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 1, Errors: 1, Deferred: 1, Remapped: 1}, res)

	for _, c := range v.remote.Calls() {
		assert.NotEqual(t, "update", c.Op)
	}
	q := v.queued(t, models.TableCars)
	require.Len(t, q, 2)
	assert.Equal(t, models.OpCreate, q[0].Operation)
	assert.Equal(t, models.OpUpdate, q[1].Operation)
}

func TestSyncAllTables_RemapsChildForeignKeys(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)
	maintenance := v.gateway(models.TableMaintenance, 2000)

	v.remote.SetOffline(true)
	car := cars.Create(ctx, models.Record{"brand": "Toyota"})
	maintenance.Create(ctx, models.Record{"carId": car.ID(), "serviceType": "oil"})
	v.remote.SetOffline(false)

	res, err := v.engine.SyncAllTables(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 2, Remapped: 2}, res)

	carID := v.remote.Records(models.TableCars)[0].ID()
	stored := v.remote.Records(models.TableMaintenance)
	require.Len(t, stored, 1)
	assert.Equal(t, carID, stored[0]["car_id"])

	cached := v.cached(t, models.TableMaintenance)
	require.Len(t, cached, 1)
	assert.Equal(t, carID, cached[0]["carId"])
	assert.False(t, cached[0].IsOffline())

	n, err := v.engine.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncTable_ChildWaitsForParent(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)
	maintenance := v.gateway(models.TableMaintenance, 2000)

	v.remote.SetOffline(true)
	car := cars.Create(ctx, models.Record{"brand": "Toyota"})
	maintenance.Create(ctx, models.Record{"carId": car.ID()})
	v.remote.SetOffline(false)
	before := len(v.remote.Calls())

	res, err := v.engine.SyncTable(ctx, models.TableMaintenance)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Deferred: 1}, res)
	assert.Len(t, v.remote.Calls(), before)
	assert.Len(t, v.queued(t, models.TableMaintenance), 1)
}

func TestSyncTable_EntryEnqueuedDuringDrainSurvives(t *testing.T) {
	v := newEnv(t, WithPolicy(PolicyClearOnProgress))
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	cars.Create(ctx, models.Record{"brand": "A"})
	v.remote.SetOffline(false)

	fired := false
	v.remote.SetFailFn(func(c remotetest.Call) error {
		if !fired {
			fired = true
			v.reg.Table(models.TableCars).Queue.Enqueue(ctx, models.OpUpdate, models.Record{"id": "c9", "color": "red"})
		}
		return nil
	})

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Equal(t, "c9", q[0].RecordID())
}

func TestSyncTable_CreateThenDeleteLeavesNothing(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := v.gateway(models.TableCars, 1000)

	v.remote.SetOffline(true)
	rec := cars.Create(ctx, models.Record{"brand": "A"})
	require.NoError(t, cars.Delete(ctx, rec.ID()))
	v.remote.SetOffline(false)

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Empty(t, v.remote.Records(models.TableCars))
	assert.Empty(t, v.cached(t, models.TableCars))
	assert.Empty(t, v.queued(t, models.TableCars))
}

func TestSyncTable_DeleteEdgeCases(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	q := v.reg.Table(models.TableCars).Queue

	q.Enqueue(ctx, models.OpDelete, models.Record{"id": "temp_5"})
	q.Enqueue(ctx, models.OpDelete, models.Record{"id": "gone"})

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 2}, res)

	calls := v.remote.Calls()
	require.Len(t, calls, 1, "temporary ids never reach the server")
	assert.Equal(t, "gone", calls[0].ID)
}

func TestSyncTable_Errors(t *testing.T) {
	v := newEnv(t)

	_, err := v.engine.SyncTable(context.Background(), "boats")
	require.ErrorIs(t, err, ErrUnknownTable)

	res, err := v.engine.SyncTable(context.Background(), models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{}, res)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v.reg.Table(models.TableCars).Queue.Enqueue(context.Background(), models.OpDelete, models.Record{"id": "x"})
	_, err = v.engine.SyncTable(ctx, models.TableCars)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, v.queued(t, models.TableCars), 1)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyRetainFailed, false},
		{"retain", PolicyRetainFailed, false},
		{"clear", PolicyClearOnProgress, false},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Policy {
	t.Helper()
	p, err := ParsePolicy(s)
	require.NoError(t, err)
	return p
}

// lostReply commits inserts to the wrapped store and then reports the
// server as unreachable, as when the reply times out.
type lostReply struct {
	*remotetest.Store
}

func (l lostReply) Insert(ctx context.Context, table string, data models.Record) (models.Record, error) {
	if _, err := l.Store.Insert(ctx, table, data); err != nil {
		return nil, err
	}
	return nil, remote.ErrUnavailable
}

func TestSyncTable_ReplayAfterLostReplyKeepsOneRecord(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()
	cars := gateway.New(v.reg.Table(models.TableCars), lostReply{v.remote}, logging.Nop(),
		gateway.WithClock(func() time.Time { return time.UnixMilli(1000) }))

	rec := cars.Create(ctx, models.Record{"brand": "Toyota"})
	require.True(t, rec.IsOffline())
	assert.Equal(t, "temp_1000", rec.ID())
	assert.NotContains(t, rec, models.FieldClientRef)
	require.Len(t, v.remote.Records(models.TableCars), 1, "the insert went through")

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Synced: 1, Remapped: 1}, res)

	stored := v.remote.Records(models.TableCars)
	assert.Equal(t, []models.Record{{"id": "srv-1", "brand": "Toyota"}}, stored)
	assert.Equal(t, stored, v.cached(t, models.TableCars))
	assert.Empty(t, v.queued(t, models.TableCars))
}

func TestSyncTable_ForeignRecordWriteIsDropped(t *testing.T) {
	v := newEnv(t, WithMaxAttempts(2))
	ctx := context.Background()

	v.reg.Table(models.TableCars).Queue.Enqueue(ctx, models.OpUpdate, models.Record{"id": "c9", "brand": "X"})
	v.remote.SetFailFn(func(c remotetest.Call) error {
		if c.Op == "update" {
			return fmt.Errorf("%w: record belongs to another user", remote.ErrRejected)
		}
		return nil
	})

	res, err := v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Errors: 1}, res)
	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Equal(t, 1, q[0].Attempts)

	res, err = v.engine.SyncTable(ctx, models.TableCars)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Errors: 1, Dropped: 1}, res)

	n, err := v.engine.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncTable_ExpiredSessionKeepsEntry(t *testing.T) {
	v := newEnv(t, WithMaxAttempts(2))
	ctx := context.Background()

	v.reg.Table(models.TableCars).Queue.Enqueue(ctx, models.OpUpdate, models.Record{"id": "c9", "brand": "X"})
	v.remote.SetFailFn(func(remotetest.Call) error {
		return fmt.Errorf("%w: token expired", remote.ErrUnauthorized)
	})

	for i := 0; i < 3; i++ {
		_, err := v.engine.SyncTable(ctx, models.TableCars)
		require.NoError(t, err)
	}

	q := v.queued(t, models.TableCars)
	require.Len(t, q, 1)
	assert.Zero(t, q[0].Attempts)
}
