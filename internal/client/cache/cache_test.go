package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	kvstore.Store
	err error
}

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte) error   { return f.err }

func TestLoad_EmptyWhenNeverSaved(t *testing.T) {
	c := New(kvstore.NewMemoryStore(), "cars")
	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveLoad_Snapshot(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	c := New(store, "cars")

	entries := []models.Record{
		{"id": "c1", "brand": "Toyota"},
		{"id": "temp_1", "brand": "Honda", models.MarkerOffline: true},
	}
	require.NoError(t, c.Save(ctx, entries))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	raw, err := store.Get(ctx, "offline_cars")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"c1","brand":"Toyota"},{"id":"temp_1","brand":"Honda","_isOffline":true}]`, string(raw))

	require.NoError(t, c.Save(ctx, nil))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, Key("cars"), []byte("{not json")))

	_, err := New(store, "cars").Load(ctx)
	require.Error(t, err)
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	c := New(failingStore{err: boom}, "cars")

	_, err := c.Load(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, c.Save(ctx, nil), boom)
}

func TestHelpers(t *testing.T) {
	entries := []models.Record{{"id": "a"}, {"id": "b"}}

	assert.Equal(t, 1, IndexOf(entries, "b"))
	assert.Equal(t, -1, IndexOf(entries, "z"))

	entries = Upsert(entries, models.Record{"id": "b", "x": 1})
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, entries[1]["x"])

	entries = Upsert(entries, models.Record{"id": "c"})
	assert.Len(t, entries, 3)

	entries, ok := Remove(entries, "a")
	assert.True(t, ok)
	assert.Equal(t, []models.Record{{"id": "b", "x": 1}, {"id": "c"}}, entries)

	_, ok = Remove(entries, "zzz")
	assert.False(t, ok)
}
