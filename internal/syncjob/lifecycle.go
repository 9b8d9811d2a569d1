package syncjob

import (
	"context"

	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// Lifecycle drives one SyncJob's state machine against a Store.
type Lifecycle struct {
	Store Store
}

// Start transitions a pending job to running. Fails if the job is not
// currently pending — a job started twice is a bug in the caller, not a
// retryable condition.
func (l *Lifecycle) Start(ctx context.Context, jobID string) error {
	job, err := l.Store.Get(ctx, jobID)
	if err != nil {
		return syncerr.StateStoreFailed("job_get", err)
	}
	if job.Status != StatusPending {
		return ErrInvalidTransition
	}
	return l.Store.UpdateStatus(ctx, jobID, StatusRunning, "")
}

// Complete transitions a running job to completed and records its final
// counters and cursor.
func (l *Lifecycle) Complete(ctx context.Context, jobID string, inserted, updated, kept, skipped, failed int64, cursor *Cursor) error {
	if err := l.transitionFromRunning(ctx, jobID); err != nil {
		return err
	}
	if err := l.Store.RecordStats(ctx, jobID, inserted, updated, kept, skipped, failed); err != nil {
		return syncerr.StateStoreFailed("job_record_stats", err)
	}
	if cursor != nil {
		if err := l.Store.SaveCursor(ctx, jobID, cursor); err != nil {
			return syncerr.CursorPersistenceFailed(jobID, err)
		}
	}
	return l.Store.UpdateStatus(ctx, jobID, StatusCompleted, "")
}

// Fail transitions a running job to failed with the given error message.
// Partial counters (whatever was accounted before the fatal error) are
// still recorded, so a failed run's progress is visible.
func (l *Lifecycle) Fail(ctx context.Context, jobID string, cause error, inserted, updated, kept, skipped, failed int64) error {
	if err := l.transitionFromRunning(ctx, jobID); err != nil {
		return err
	}
	if err := l.Store.RecordStats(ctx, jobID, inserted, updated, kept, skipped, failed); err != nil {
		return syncerr.StateStoreFailed("job_record_stats", err)
	}
	return l.Store.UpdateStatus(ctx, jobID, StatusFailed, cause.Error())
}

// Cancel transitions a running (or pending) job to cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, jobID string) error {
	job, err := l.Store.Get(ctx, jobID)
	if err != nil {
		return syncerr.StateStoreFailed("job_get", err)
	}
	if job.Status.terminal() {
		return ErrInvalidTransition
	}
	return l.Store.UpdateStatus(ctx, jobID, StatusCancelled, "")
}

// TimedOut transitions a running job to timed_out, used when the job's
// deadline (SPEC_FULL §4.11) elapses before it reaches a terminal state.
func (l *Lifecycle) TimedOut(ctx context.Context, jobID string) error {
	if err := l.transitionFromRunning(ctx, jobID); err != nil {
		return err
	}
	return l.Store.UpdateStatus(ctx, jobID, StatusTimedOut, "")
}

func (l *Lifecycle) transitionFromRunning(ctx context.Context, jobID string) error {
	job, err := l.Store.Get(ctx, jobID)
	if err != nil {
		return syncerr.StateStoreFailed("job_get", err)
	}
	if job.Status != StatusRunning {
		return ErrInvalidTransition
	}
	return nil
}

// CleanupSourceConnection is the secondary workflow spec.md §4.11 requires
// on source-connection deletion: every job belonging to syncIDs the
// connection owns is cancelled if still active, so a deleted connection
// never leaves an orchestrator writing to destinations for it.
func (l *Lifecycle) CleanupSourceConnection(ctx context.Context, activeJobIDs []string) error {
	for _, jobID := range activeJobIDs {
		if err := l.Cancel(ctx, jobID); err != nil && err != ErrInvalidTransition {
			return err
		}
	}
	return nil
}
