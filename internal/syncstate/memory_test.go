package syncstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetByEntityAndSync(ctx, "sync-1", "e1")
	require.ErrorIs(t, err, ErrNotFound)

	rec, err := store.Upsert(ctx, &Record{SyncID: "sync-1", EntityID: "e1", Hash: "h1", SyncJobID: "job-1"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, err := store.GetByEntityAndSync(ctx, "sync-1", "e1")
	require.NoError(t, err)
	require.Equal(t, "h1", got.Hash)
}

func TestMemoryStoreUpsertPreservesIDAcrossUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h1"})
	require.NoError(t, err)

	second, err := store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h2"})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "h2", second.Hash)
}

func TestMemoryStoreListEntityIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h"})
	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e2", Hash: "h"})
	_, _ = store.Upsert(ctx, &Record{SyncID: "other-sync", EntityID: "e3", Hash: "h"})

	ids, err := store.ListEntityIDs(ctx, "s")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"e1", "e2"}, ids)
}

func TestMemoryStoreDeleteNotIn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h"})
	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e2", Hash: "h"})
	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e3", Hash: "h"})

	removed, err := store.DeleteNotIn(ctx, "s", []string{"e1", "e3"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"e2"}, removed)

	ids, err := store.ListEntityIDs(ctx, "s")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"e1", "e3"}, ids)
}

func TestMemoryStoreDeleteNotInWithEmptyKeepRemovesAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h"})
	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e2", Hash: "h"})

	removed, err := store.DeleteNotIn(ctx, "s", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"e1", "e2"}, removed)

	count, err := store.CountBySync(ctx, "s")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryStoreDeleteByEntityAndSync(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, _ = store.Upsert(ctx, &Record{SyncID: "s", EntityID: "e1", Hash: "h"})
	require.NoError(t, store.DeleteByEntityAndSync(ctx, "s", "e1"))

	_, err := store.GetByEntityAndSync(ctx, "s", "e1")
	require.ErrorIs(t, err, ErrNotFound)
}
