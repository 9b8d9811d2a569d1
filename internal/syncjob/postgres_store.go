package syncjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// PostgresStore is the Store backed by the sync_job and sync_destination
// tables (internal/platform/migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, job *SyncJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_job (id, organization_id, sync_id, status)
		VALUES ($1, $2, $3, $4)
	`, job.ID, job.OrganizationID, job.SyncID, job.Status)
	if err != nil {
		return syncerr.StateStoreFailed("job_create", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*SyncJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, sync_id, status, inserted, updated, kept, skipped, failed,
		       COALESCE(error, ''), started_at, ended_at, cursor_data, cursor_fields
		FROM sync_job WHERE id = $1
	`, jobID)

	var (
		job          SyncJob
		status       string
		cursorData   []byte
		cursorFields []byte
	)
	err := row.Scan(&job.ID, &job.OrganizationID, &job.SyncID, &status, &job.Inserted, &job.Updated,
		&job.Kept, &job.Skipped, &job.Failed, &job.Error, &job.StartedAt, &job.EndedAt, &cursorData, &cursorFields)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, syncerr.StateStoreFailed("job_get", err)
	}
	job.Status = Status(status)

	if cursorData != nil || cursorFields != nil {
		cursor := &Cursor{Data: cursorData}
		if cursorFields != nil {
			if err := json.Unmarshal(cursorFields, &cursor.Fields); err != nil {
				return nil, syncerr.StateStoreFailed("job_get_cursor_decode", err)
			}
		}
		job.Cursor = cursor
	}

	return &job, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, jobID string, status Status, errMsg string) error {
	now := time.Now().UTC()

	var query string
	var args []any
	switch {
	case status == StatusRunning:
		query = `UPDATE sync_job SET status = $1, started_at = $2, error = NULL WHERE id = $3`
		args = []any{status, now, jobID}
	case status.terminal():
		query = `UPDATE sync_job SET status = $1, ended_at = $2, error = NULLIF($3, '') WHERE id = $4`
		args = []any{status, now, errMsg, jobID}
	default:
		query = `UPDATE sync_job SET status = $1 WHERE id = $2`
		args = []any{status, jobID}
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return syncerr.StateStoreFailed("job_update_status", err)
	}
	return nil
}

func (s *PostgresStore) SaveCursor(ctx context.Context, jobID string, cursor *Cursor) error {
	var fieldsJSON []byte
	if cursor.Fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(cursor.Fields)
		if err != nil {
			return syncerr.CursorPersistenceFailed(jobID, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_job SET cursor_data = $1, cursor_fields = $2 WHERE id = $3
	`, cursor.Data, fieldsJSON, jobID)
	if err != nil {
		return syncerr.CursorPersistenceFailed(jobID, err)
	}
	return nil
}

func (s *PostgresStore) RecordStats(ctx context.Context, jobID string, inserted, updated, kept, skipped, failed int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_job SET inserted = $1, updated = $2, kept = $3, skipped = $4, failed = $5 WHERE id = $6
	`, inserted, updated, kept, skipped, failed, jobID)
	if err != nil {
		return syncerr.StateStoreFailed("job_record_stats", err)
	}
	return nil
}

// ReplaceDestinations overwrites syncID's sync_destination rows inside a
// single transaction, so a concurrent ListDestinations never observes a
// partially-cleared join.
func (s *PostgresStore) ReplaceDestinations(ctx context.Context, syncID string, destinations []Destination) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncerr.StateStoreFailed("job_replace_destinations_begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_destination WHERE sync_id = $1`, syncID); err != nil {
		return syncerr.StateStoreFailed("job_replace_destinations_delete", err)
	}

	for _, d := range destinations {
		configJSON, err := json.Marshal(d.Config)
		if err != nil {
			return syncerr.StateStoreFailed("job_replace_destinations_encode", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_destination (sync_id, destination_id, config) VALUES ($1, $2, $3)
		`, syncID, d.DestinationID, configJSON); err != nil {
			return syncerr.StateStoreFailed("job_replace_destinations_insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return syncerr.StateStoreFailed("job_replace_destinations_commit", err)
	}
	return nil
}

func (s *PostgresStore) ListDestinations(ctx context.Context, syncID string) ([]Destination, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, destination_id, config FROM sync_destination WHERE sync_id = $1
	`, syncID)
	if err != nil {
		return nil, syncerr.StateStoreFailed("job_list_destinations", err)
	}
	defer rows.Close()

	var out []Destination
	for rows.Next() {
		var d Destination
		var configJSON []byte
		if err := rows.Scan(&d.SyncID, &d.DestinationID, &configJSON); err != nil {
			return nil, syncerr.StateStoreFailed("job_list_destinations_scan", err)
		}
		if configJSON != nil {
			if err := json.Unmarshal(configJSON, &d.Config); err != nil {
				return nil, syncerr.StateStoreFailed("job_list_destinations_decode", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
