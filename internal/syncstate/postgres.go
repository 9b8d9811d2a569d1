package syncstate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// PostgresStore is the Store backed by the entity_state table
// (internal/platform/migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open *sql.DB. The caller owns the connection's
// lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByEntityAndSync(ctx context.Context, syncID, entityID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, sync_id, entity_id, hash, sync_job_id, modified_at
		FROM entity_state
		WHERE sync_id = $1 AND entity_id = $2
	`, syncID, entityID)

	var rec Record
	err := row.Scan(&rec.ID, &rec.OrganizationID, &rec.SyncID, &rec.EntityID, &rec.Hash, &rec.SyncJobID, &rec.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, syncerr.StateStoreFailed("get_by_entity_and_sync", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.ModifiedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_state (id, organization_id, sync_id, entity_id, hash, sync_job_id, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sync_id, entity_id) DO UPDATE
		SET hash = EXCLUDED.hash, sync_job_id = EXCLUDED.sync_job_id, modified_at = EXCLUDED.modified_at
	`, rec.ID, rec.OrganizationID, rec.SyncID, rec.EntityID, rec.Hash, rec.SyncJobID, rec.ModifiedAt)
	if err != nil {
		return nil, syncerr.StateStoreFailed("upsert", err)
	}

	return s.GetByEntityAndSync(ctx, rec.SyncID, rec.EntityID)
}

func (s *PostgresStore) ListEntityIDs(ctx context.Context, syncID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id FROM entity_state WHERE sync_id = $1`, syncID)
	if err != nil {
		return nil, syncerr.StateStoreFailed("list_entity_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, syncerr.StateStoreFailed("list_entity_ids_scan", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteNotIn removes rows for syncID whose entity_id is not in keep. With
// keep empty, every row for syncID is deleted (the source returned nothing
// live).
func (s *PostgresStore) DeleteNotIn(ctx context.Context, syncID string, keep []string) ([]string, error) {
	var (
		query string
		args  []any
	)

	if len(keep) == 0 {
		query = `DELETE FROM entity_state WHERE sync_id = $1 RETURNING entity_id`
		args = []any{syncID}
	} else {
		placeholders := make([]string, len(keep))
		args = make([]any, 0, len(keep)+1)
		args = append(args, syncID)
		for i, id := range keep {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query = fmt.Sprintf(
			`DELETE FROM entity_state WHERE sync_id = $1 AND entity_id NOT IN (%s) RETURNING entity_id`,
			strings.Join(placeholders, ", "),
		)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncerr.StateStoreFailed("delete_not_in", err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, syncerr.StateStoreFailed("delete_not_in_scan", err)
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

func (s *PostgresStore) DeleteByEntityAndSync(ctx context.Context, syncID, entityID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entity_state WHERE sync_id = $1 AND entity_id = $2`, syncID, entityID)
	if err != nil {
		return syncerr.StateStoreFailed("delete_by_entity_and_sync", err)
	}
	return nil
}

func (s *PostgresStore) CountBySync(ctx context.Context, syncID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_state WHERE sync_id = $1`, syncID).Scan(&count)
	if err != nil {
		return 0, syncerr.StateStoreFailed("count_by_sync", err)
	}
	return count, nil
}
