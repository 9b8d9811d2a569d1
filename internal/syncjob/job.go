// Package syncjob is the sync-job lifecycle state machine and cursor
// persistence (SPEC_FULL §4.11): one SyncJob row per orchestrator run,
// advancing pending -> running -> {completed, failed, cancelled, timed_out}.
package syncjob

import (
	"context"
	"errors"
	"time"
)

// Status is a SyncJob's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// terminal reports whether s is one a job cannot leave.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned by the lifecycle helpers when a caller
// attempts to move a job out of a terminal state, or to "running" from
// anything but "pending".
var ErrInvalidTransition = errors.New("syncjob: invalid status transition")

// ErrJobNotFound is returned by Store.Get when no row exists for a job ID.
var ErrJobNotFound = errors.New("syncjob: job not found")

// Cursor is the connector-opaque resume point persisted at end of run
// (spec.md §4.8/§4.11): Data is a connector-defined blob (e.g. a
// last-modified timestamp or page token), Fields is a structured projection
// of the same for destinations/observability that want to inspect it
// without understanding the connector's encoding.
type Cursor struct {
	Data   []byte
	Fields map[string]any
}

// SyncJob is one row of the sync_job table.
type SyncJob struct {
	ID             string
	OrganizationID string
	SyncID         string
	Status         Status
	Inserted       int64
	Updated        int64
	Kept           int64
	Skipped        int64
	Failed         int64
	Error          string
	StartedAt      *time.Time
	EndedAt        *time.Time
	Cursor         *Cursor
}

// Destination is one row of sync_destination: a destination attached to a
// sync, with its connector-specific config.
type Destination struct {
	SyncID        string
	DestinationID string
	Config        map[string]any
}

// Store persists SyncJob rows and the sync_destination join.
type Store interface {
	Create(ctx context.Context, job *SyncJob) error
	Get(ctx context.Context, jobID string) (*SyncJob, error)
	UpdateStatus(ctx context.Context, jobID string, status Status, errMsg string) error
	SaveCursor(ctx context.Context, jobID string, cursor *Cursor) error
	RecordStats(ctx context.Context, jobID string, inserted, updated, kept, skipped, failed int64) error
	ListDestinations(ctx context.Context, syncID string) ([]Destination, error)
	// ReplaceDestinations overwrites sync_destination's rows for syncID with
	// destinations, so a sync's definition stays the single source of truth
	// for which destinations it writes to (spec.md §9 open question 2).
	ReplaceDestinations(ctx context.Context, syncID string, destinations []Destination) error
}
