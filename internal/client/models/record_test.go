package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_IDAndMarkers(t *testing.T) {
	r := Record{"id": "c1", MarkerOffline: true}
	assert.Equal(t, "c1", r.ID())
	assert.True(t, r.IsOffline())
	assert.False(t, r.FromCache())

	assert.Equal(t, "42", Record{"id": float64(42)}.ID())
	assert.Equal(t, "", Record{}.ID())
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := Record{"id": "c1", "tags": []any{"a"}, "meta": map[string]any{"k": "v"}}
	c := r.Clone()
	c["tags"].([]any)[0] = "b"
	c["meta"].(map[string]any)["k"] = "x"

	assert.Equal(t, "a", r["tags"].([]any)[0])
	assert.Equal(t, "v", r["meta"].(map[string]any)["k"])
}

func TestRecord_WithoutMarkers(t *testing.T) {
	r := Record{"id": "c1", MarkerOffline: true, MarkerFromCache: true}
	got := r.WithoutMarkers()
	assert.Equal(t, Record{"id": "c1"}, got)
	assert.True(t, r.IsOffline(), "original must be untouched")
}

func TestRecord_Merge(t *testing.T) {
	r := Record{"id": "c1", "brand": "Toyota", "model": "Corolla"}
	got := r.Merge(Record{"model": "Camry", "year": float64(2020)})
	assert.Equal(t, Record{"id": "c1", "brand": "Toyota", "model": "Camry", "year": float64(2020)}, got)
	assert.Equal(t, "Corolla", r["model"])

	assert.Equal(t, Record{"a": 1}, Record(nil).Merge(Record{"a": 1}))
}

func TestTempID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := TempID(now)
	assert.Equal(t, "temp_1700000000123", id)
	assert.True(t, IsTempID(id))
	assert.True(t, IsTempID("temp-99"))
	assert.False(t, IsTempID("5b1e0a2c"))
}

func TestFieldsFromString_OK(t *testing.T) {
	rec, err := FieldsFromString([]string{"brand=Toyota", "year=2019", "price=12.5", "active=true", "note = a=b"})
	require.NoError(t, err)
	assert.Equal(t, "Toyota", rec["brand"])
	assert.Equal(t, float64(2019), rec["year"])
	assert.Equal(t, 12.5, rec["price"])
	assert.Equal(t, true, rec["active"])
	assert.Equal(t, "a=b", rec["note"])
}

func TestFieldsFromString_Malformed(t *testing.T) {
	_, err := FieldsFromString([]string{"justname"})
	require.ErrorIs(t, err, ErrIncorrectField)

	_, err = FieldsFromString([]string{"=value"})
	require.ErrorIs(t, err, ErrIncorrectField)
}

func TestSyncResult_Add(t *testing.T) {
	r := SyncResult{Synced: 1, Errors: 1}
	r.Add(SyncResult{Synced: 2, Dropped: 1, Deferred: 3, Remapped: 1})
	assert.Equal(t, SyncResult{Synced: 3, Errors: 1, Dropped: 1, Deferred: 3, Remapped: 1}, r)
}

func TestQueueEntry_RecordID(t *testing.T) {
	e := QueueEntry{Operation: OpDelete, Data: Record{"id": "x"}}
	assert.Equal(t, "x", e.RecordID())
}

func TestRecord_ForInsert(t *testing.T) {
	r := Record{"id": "temp_1", "brand": "Kia", FieldClientRef: "ref-1", MarkerOffline: true}
	assert.Equal(t, Record{"brand": "Kia", FieldClientRef: "ref-1"}, r.ForInsert())
	assert.Equal(t, "temp_1", r.ID(), "receiver is untouched")

	assert.Equal(t, Record{"id": "c1"}, Record{"id": "c1"}.ForInsert())
	assert.Equal(t, Record{}, Record(nil).ForInsert())
}
