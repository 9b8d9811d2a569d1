package syncorch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/syncengine/internal/syncdag"
	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncstate"
)

var errConcurrencyExceeded = errors.New("concurrency exceeded maxWorkers")

type fakeDestination struct {
	mu      sync.Mutex
	inserts []syncentity.Entity
	deletes []string
}

func (f *fakeDestination) SetupCollection(ctx context.Context, syncID string) error { return nil }

func (f *fakeDestination) BulkInsert(ctx context.Context, entities []syncentity.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, entities...)
	return nil
}

func (f *fakeDestination) Delete(ctx context.Context, dbEntityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, dbEntityID)
	return nil
}

func (f *fakeDestination) BulkDeleteByParentID(ctx context.Context, parentID string) error { return nil }

func (f *fakeDestination) SearchForSyncID(ctx context.Context, query, syncID string, limit int) ([]syncdest.SearchResult, error) {
	return nil, nil
}

func (f *fakeDestination) Close(ctx context.Context) error { return nil }

func buildOrchestrator(dest syncdest.Destination) (*Orchestrator, *syncdag.DAG) {
	dag := syncdag.NewDAG([]*syncdag.Node{
		{ID: "source", Kind: syncdag.NodeSource},
		{ID: "dest", Kind: syncdag.NodeDestination, Destination: "fake"},
	}, [][2]string{{"source", "dest"}})

	o := &Orchestrator{
		MaxWorkers:   4,
		StreamBuffer: 16,
		Router:       syncdag.NewRouter(dag),
		State:        syncstate.NewMemoryStore(),
		Destinations: map[string]syncdest.Destination{"fake": dest},
	}
	return o, dag
}

func chunk(id string) *syncentity.ChunkEntity {
	return &syncentity.ChunkEntity{
		Ident:   syncentity.Identity{EntityID: id, SyncID: "sync-1"},
		EntityType: "issue",
		Content:    "hello " + id,
	}
}

func TestRunJobInsertsNewEntities(t *testing.T) {
	dest := &fakeDestination{}
	o, _ := buildOrchestrator(dest)

	stats, err := o.RunJob(context.Background(), JobRequest{
		SyncID:         "sync-1",
		SyncJobID:      "job-1",
		ProducerNodeID: "source",
		Entities: func(ctx context.Context, emit func(syncentity.Entity) error) error {
			return emit(chunk("e1"))
		},
	})

	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Inserted)
	require.Len(t, dest.inserts, 1)
}

func TestRunJobKeepsUnchangedEntityOnSecondRun(t *testing.T) {
	dest := &fakeDestination{}
	o, _ := buildOrchestrator(dest)

	gen := func(ctx context.Context, emit func(syncentity.Entity) error) error {
		return emit(chunk("e1"))
	}

	_, err := o.RunJob(context.Background(), JobRequest{SyncID: "sync-1", SyncJobID: "job-1", ProducerNodeID: "source", Entities: gen})
	require.NoError(t, err)

	stats, err := o.RunJob(context.Background(), JobRequest{SyncID: "sync-1", SyncJobID: "job-2", ProducerNodeID: "source", Entities: gen})
	require.NoError(t, err)
	require.EqualValues(t, 0, stats.Inserted)
	require.EqualValues(t, 1, stats.Kept)
	require.Len(t, dest.inserts, 1) // still just the first run's write
}

func TestRunJobUpdatesChangedEntity(t *testing.T) {
	dest := &fakeDestination{}
	o, _ := buildOrchestrator(dest)

	_, err := o.RunJob(context.Background(), JobRequest{
		SyncID: "sync-1", SyncJobID: "job-1", ProducerNodeID: "source",
		Entities: func(ctx context.Context, emit func(syncentity.Entity) error) error {
			return emit(chunk("e1"))
		},
	})
	require.NoError(t, err)

	changed := chunk("e1")
	changed.Content = "changed"
	stats, err := o.RunJob(context.Background(), JobRequest{
		SyncID: "sync-1", SyncJobID: "job-2", ProducerNodeID: "source",
		Entities: func(ctx context.Context, emit func(syncentity.Entity) error) error {
			return emit(changed)
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Updated)
	require.Contains(t, dest.deletes, "e1")
	require.Len(t, dest.inserts, 2) // first run's insert, then the update's delete+re-insert
}

func TestRunJobFullSyncDeletesMissingEntities(t *testing.T) {
	dest := &fakeDestination{}
	o, _ := buildOrchestrator(dest)

	_, err := o.RunJob(context.Background(), JobRequest{
		SyncID: "sync-1", SyncJobID: "job-1", ProducerNodeID: "source", FullSync: true,
		Entities: func(ctx context.Context, emit func(syncentity.Entity) error) error {
			if err := emit(chunk("e1")); err != nil {
				return err
			}
			return emit(chunk("e2"))
		},
	})
	require.NoError(t, err)

	stats, err := o.RunJob(context.Background(), JobRequest{
		SyncID: "sync-1", SyncJobID: "job-2", ProducerNodeID: "source", FullSync: true,
		Entities: func(ctx context.Context, emit func(syncentity.Entity) error) error {
			return emit(chunk("e1"))
		},
	})

	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Deleted)
	require.Contains(t, dest.deletes, "e2")
}

type concurrencyTrackingDestination struct {
	fakeDestination
	maxWorkers  int32
	active      int32
	observedMax int32
}

func (c *concurrencyTrackingDestination) BulkInsert(ctx context.Context, entities []syncentity.Entity) error {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)

	for {
		prev := atomic.LoadInt32(&c.observedMax)
		if n <= prev || atomic.CompareAndSwapInt32(&c.observedMax, prev, n) {
			break
		}
	}

	if n > c.maxWorkers {
		return errConcurrencyExceeded
	}
	time.Sleep(2 * time.Millisecond)
	return c.fakeDestination.BulkInsert(ctx, entities)
}

func TestRunJobBoundsConcurrencyToMaxWorkers(t *testing.T) {
	dest := &concurrencyTrackingDestination{maxWorkers: 2}
	o, _ := buildOrchestrator(dest)
	o.MaxWorkers = 2

	gen := func(ctx context.Context, emit func(syncentity.Entity) error) error {
		for i := 0; i < 20; i++ {
			if err := emit(chunk(string(rune('a' + i)))); err != nil {
				return err
			}
		}
		return nil
	}

	stats, err := o.RunJob(context.Background(), JobRequest{
		SyncID: "sync-concurrency", SyncJobID: "job-1", ProducerNodeID: "source",
		Entities: gen,
	})
	require.NoError(t, err)
	require.EqualValues(t, 20, stats.Inserted)
	require.LessOrEqual(t, atomic.LoadInt32(&dest.observedMax), int32(2))
}
