package syncjob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestJob(t *testing.T, store Store) string {
	t.Helper()
	job := &SyncJob{OrganizationID: "org-1", SyncID: "sync-1"}
	require.NoError(t, store.Create(context.Background(), job))
	return job.ID
}

func TestLifecycleStartRequiresPending(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)

	require.NoError(t, l.Start(context.Background(), jobID))

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	require.ErrorIs(t, l.Start(context.Background(), jobID), ErrInvalidTransition)
}

func TestLifecycleCompleteRecordsStatsAndCursor(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), jobID))

	err := l.Complete(context.Background(), jobID, 10, 2, 5, 1, 0, &Cursor{Data: []byte("tok")})
	require.NoError(t, err)

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, job.Status)
	require.Equal(t, int64(10), job.Inserted)
	require.NotNil(t, job.EndedAt)
	require.NotNil(t, job.Cursor)
	require.Equal(t, []byte("tok"), job.Cursor.Data)
}

func TestLifecycleCompleteRequiresRunning(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)

	err := l.Complete(context.Background(), jobID, 0, 0, 0, 0, 0, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycleFailRecordsPartialStatsAndError(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), jobID))

	cause := errors.New("boom")
	require.NoError(t, l.Fail(context.Background(), jobID, cause, 3, 0, 0, 0, 1))

	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, job.Status)
	require.Equal(t, "boom", job.Error)
	require.Equal(t, int64(3), job.Inserted)
}

func TestLifecycleCancelFromPendingOrRunning(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}

	pendingID := newTestJob(t, store)
	require.NoError(t, l.Cancel(context.Background(), pendingID))
	job, _ := store.Get(context.Background(), pendingID)
	require.Equal(t, StatusCancelled, job.Status)

	runningID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), runningID))
	require.NoError(t, l.Cancel(context.Background(), runningID))
	job, _ = store.Get(context.Background(), runningID)
	require.Equal(t, StatusCancelled, job.Status)
}

func TestLifecycleCancelRejectsTerminalJob(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)
	require.NoError(t, l.Cancel(context.Background(), jobID))

	require.ErrorIs(t, l.Cancel(context.Background(), jobID), ErrInvalidTransition)
}

func TestLifecycleTimedOutRequiresRunning(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}
	jobID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), jobID))

	require.NoError(t, l.TimedOut(context.Background(), jobID))
	job, _ := store.Get(context.Background(), jobID)
	require.Equal(t, StatusTimedOut, job.Status)
}

func TestCleanupSourceConnectionCancelsActiveJobsAndToleratesTerminal(t *testing.T) {
	store := NewMemoryStore()
	l := &Lifecycle{Store: store}

	runningID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), runningID))

	alreadyDoneID := newTestJob(t, store)
	require.NoError(t, l.Start(context.Background(), alreadyDoneID))
	require.NoError(t, l.Complete(context.Background(), alreadyDoneID, 0, 0, 0, 0, 0, nil))

	err := l.CleanupSourceConnection(context.Background(), []string{runningID, alreadyDoneID})
	require.NoError(t, err)

	job, _ := store.Get(context.Background(), runningID)
	require.Equal(t, StatusCancelled, job.Status)

	job, _ = store.Get(context.Background(), alreadyDoneID)
	require.Equal(t, StatusCompleted, job.Status)
}
