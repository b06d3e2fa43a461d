package remotetest

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec, err := s.Insert(ctx, "cars", models.Record{"brand": "Toyota", "user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", rec.ID())

	_, err = s.Insert(ctx, "cars", models.Record{"id": "srv-1"})
	require.ErrorIs(t, err, remote.ErrRejected)

	got, err := s.Get(ctx, "cars", "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Toyota", got["brand"])

	upd, err := s.Update(ctx, "cars", "srv-1", models.Record{"model": "Corolla"})
	require.NoError(t, err)
	assert.Equal(t, "Corolla", upd["model"])

	list, err := s.ListByOwner(ctx, "cars", "user_id", "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, "cars", "srv-1"))
	require.ErrorIs(t, s.Delete(ctx, "cars", "srv-1"), remote.ErrNotFound)

	s.SetOffline(true)
	require.ErrorIs(t, s.Ping(ctx), remote.ErrUnavailable)
	_, err = s.Get(ctx, "cars", "x")
	require.ErrorIs(t, err, remote.ErrUnavailable)

	s.SetOffline(false)
	boom := errors.New("boom")
	s.SetFailFn(func(c Call) error {
		if c.Op == "update" {
			return boom
		}
		return nil
	})
	_, err = s.Update(ctx, "cars", "x", nil)
	require.ErrorIs(t, err, boom)

	assert.Len(t, s.Calls(), 9)
}

func TestFakeStore_ClientRefReplay(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.Insert(ctx, "cars", models.Record{"brand": "Toyota", ClientRefKey: "temp_1"})
	require.NoError(t, err)
	assert.Equal(t, models.Record{"id": "srv-1", "brand": "Toyota"}, first)

	again, err := s.Insert(ctx, "cars", models.Record{"brand": "Toyota", ClientRefKey: "temp_1"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := s.Insert(ctx, "expenses", models.Record{"amount": 10, ClientRefKey: "temp_1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-2", other.ID(), "refs are scoped per table")

	assert.Len(t, s.Records("cars"), 1)
}
