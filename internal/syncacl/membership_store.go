// Package syncacl reconciles a source's directory-sync (ACL) change feed
// against the access_control_membership table (SPEC_FULL §4.9).
package syncacl

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// Membership is one (group, member) row of access_control_membership.
type Membership struct {
	ID                 string `db:"id"`
	OrganizationID     string `db:"organization_id"`
	SourceConnectionID string `db:"source_connection_id"`
	GroupID            string `db:"group_id"`
	MemberID           string `db:"member_id"`
	MemberType         string `db:"member_type"`
	GroupName          string `db:"group_name"`
	SourceName         string `db:"source_name"`
}

// MembershipStore persists access_control_membership rows.
type MembershipStore interface {
	BulkUpsert(ctx context.Context, rows []Membership) error
	DeleteMember(ctx context.Context, sourceConnectionID, groupID, memberID, memberType string) error
	DeleteByGroup(ctx context.Context, sourceConnectionID, groupID string) error
	DeleteAllForSource(ctx context.Context, sourceConnectionID string) error
}

// SqlxMembershipStore is the Postgres-backed MembershipStore. It uses sqlx's
// named-parameter binds because reconciliation does large variadic-arity
// bulk upserts where positional placeholders are error-prone to build by
// hand (spec.md §4.9 full-resync path can touch thousands of rows at once).
type SqlxMembershipStore struct {
	db *sqlx.DB
}

// NewSqlxMembershipStore wraps an already-open sqlx.DB.
func NewSqlxMembershipStore(db *sqlx.DB) *SqlxMembershipStore {
	return &SqlxMembershipStore{db: db}
}

const upsertMembershipSQL = `
INSERT INTO access_control_membership
	(id, organization_id, source_connection_id, group_id, member_id, member_type, group_name, source_name)
VALUES
	(:id, :organization_id, :source_connection_id, :group_id, :member_id, :member_type, :group_name, :source_name)
ON CONFLICT (organization_id, source_connection_id, group_id, member_id, member_type)
DO UPDATE SET group_name = EXCLUDED.group_name, source_name = EXCLUDED.source_name
`

// BulkUpsert inserts or refreshes every row in one transaction.
func (s *SqlxMembershipStore) BulkUpsert(ctx context.Context, rows []Membership) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return syncerr.StateStoreFailed("acl_bulk_upsert_begin", err)
	}
	defer tx.Rollback()

	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, upsertMembershipSQL, rows[i]); err != nil {
			return syncerr.StateStoreFailed("acl_bulk_upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return syncerr.StateStoreFailed("acl_bulk_upsert_commit", err)
	}
	return nil
}

// DeleteMember removes one (group, member) row, used for incremental REMOVE
// changes.
func (s *SqlxMembershipStore) DeleteMember(ctx context.Context, sourceConnectionID, groupID, memberID, memberType string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM access_control_membership
		WHERE source_connection_id = $1 AND group_id = $2 AND member_id = $3 AND member_type = $4
	`, sourceConnectionID, groupID, memberID, memberType)
	if err != nil {
		return syncerr.StateStoreFailed("acl_delete_member", err)
	}
	return nil
}

// DeleteByGroup removes every membership row for a group, used for BASIC
// (non-incremental) reconciliation, which replaces a modified group's
// membership wholesale rather than diffing it.
func (s *SqlxMembershipStore) DeleteByGroup(ctx context.Context, sourceConnectionID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM access_control_membership WHERE source_connection_id = $1 AND group_id = $2
	`, sourceConnectionID, groupID)
	if err != nil {
		return syncerr.StateStoreFailed("acl_delete_by_group", err)
	}
	return nil
}

// DeleteAllForSource removes every row for a source connection, used by the
// full-resync fallback and by source-connection deletion cleanup.
func (s *SqlxMembershipStore) DeleteAllForSource(ctx context.Context, sourceConnectionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM access_control_membership WHERE source_connection_id = $1
	`, sourceConnectionID)
	if err != nil {
		return syncerr.StateStoreFailed("acl_delete_all_for_source", err)
	}
	return nil
}
