package local

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TablesAndPending(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(kvstore.NewMemoryStore(), models.DefaultSchema(), logging.Nop())

	require.NotNil(t, r.Table(models.TableCars))
	require.Nil(t, r.Table("boats"))

	n, err := r.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	r.Table(models.TableCars).Queue.Enqueue(ctx, models.OpCreate, models.Record{"id": "a"})
	r.Table(models.TableExpenses).Queue.Enqueue(ctx, models.OpDelete, models.Record{"id": "e"})
	r.Table(models.TableExpenses).Queue.Enqueue(ctx, models.OpDelete, models.Record{"id": "f"})

	n, err = r.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	per, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, per[models.TableCars])
	assert.Equal(t, 2, per[models.TableExpenses])
	assert.Equal(t, 0, per[models.TableArticles])
}

func TestRegistry_TablesShareStore(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := NewRegistry(store, models.DefaultSchema(), logging.Nop())

	require.NoError(t, r.Table(models.TableCars).Cache.Save(ctx, []models.Record{{"id": "c1"}}))

	keys, err := store.Keys(ctx, "offline_")
	require.NoError(t, err)
	assert.Equal(t, []string{"offline_cars"}, keys)
	assert.Same(t, store, r.Store())
	assert.Len(t, r.Schema(), 5)
}
