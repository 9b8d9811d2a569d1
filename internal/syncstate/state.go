// Package syncstate is the authoritative (sync_id, entity_id) -> content
// hash table that makes syncs idempotent (SPEC_FULL §4.8). It is the thing
// the orchestrator consults before deciding INSERT / UPDATE / KEEP, and the
// thing deletion detection diffs against at the end of a run.
package syncstate

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no row exists for a (sync_id, entity_id) pair.
var ErrNotFound = errors.New("syncstate: record not found")

// Record is one row of the entity_state table.
type Record struct {
	ID             string
	OrganizationID string
	SyncID         string
	EntityID       string
	Hash           string
	SyncJobID      string
	ModifiedAt     time.Time
}

// Store is the entity_state persistence contract. Implementations must be
// safe for concurrent use: the orchestrator calls GetByEntityAndSync and
// Upsert from up to MAX_WORKERS goroutines concurrently for the same sync_id.
type Store interface {
	// GetByEntityAndSync returns ErrNotFound if no row exists.
	GetByEntityAndSync(ctx context.Context, syncID, entityID string) (*Record, error)

	// Upsert creates or updates the row for (sync_id, entity_id), returning
	// the stored record. Used after a successful INSERT or UPDATE action.
	Upsert(ctx context.Context, rec *Record) (*Record, error)

	// ListEntityIDs returns every entity_id currently recorded for syncID.
	// Used by deletion detection to diff "seen this run" against "known
	// before this run" (SPEC_FULL §8 property 4).
	ListEntityIDs(ctx context.Context, syncID string) ([]string, error)

	// DeleteNotIn removes every row for syncID whose entity_id is not in
	// keep, and returns the deleted entity_ids. Called once at the end of a
	// successful run with the full set of entity_ids seen this run.
	DeleteNotIn(ctx context.Context, syncID string, keep []string) ([]string, error)

	// DeleteByEntityAndSync removes a single row, used when a destination
	// reports an individual deletion out of band from the end-of-run sweep.
	DeleteByEntityAndSync(ctx context.Context, syncID, entityID string) error

	// CountBySync returns the number of rows currently recorded for syncID.
	CountBySync(ctx context.Context, syncID string) (int64, error)
}
