package syncacl

import (
	"context"

	"github.com/R3E-Network/syncengine/internal/syncsource"
)

// Pipeline reconciles one DirSyncResult against a MembershipStore.
type Pipeline struct {
	Store MembershipStore
}

// Reconcile applies result to sourceConnectionID's membership rows.
//
// Incremental feeds (IncrementalValues true) apply each DirSyncChange as a
// delta: ADD upserts, REMOVE deletes one row.
//
// BASIC feeds (IncrementalValues false) carry the full current membership
// for every modified group rather than a diff, so the pipeline replaces
// each modified group's rows wholesale: delete-then-reinsert, never a
// partial delta.
//
// DeletedGroupIDs are removed outright in both modes. If applying changes
// fails partway through, Reconcile falls back to a full resync: every row
// for sourceConnectionID is dropped and rebuilt from result.Changes, so a
// partial failure never leaves stale membership rows behind.
func (p *Pipeline) Reconcile(ctx context.Context, sourceConnectionID, organizationID, sourceName string, result *syncsource.DirSyncResult) error {
	if err := p.apply(ctx, sourceConnectionID, organizationID, sourceName, result); err != nil {
		return p.fullResync(ctx, sourceConnectionID, organizationID, sourceName, result)
	}
	return nil
}

func (p *Pipeline) apply(ctx context.Context, sourceConnectionID, organizationID, sourceName string, result *syncsource.DirSyncResult) error {
	for _, groupID := range result.DeletedGroupIDs {
		if err := p.Store.DeleteByGroup(ctx, sourceConnectionID, groupID); err != nil {
			return err
		}
	}

	if !result.IncrementalValues {
		for _, groupID := range result.ModifiedGroupIDs {
			if err := p.Store.DeleteByGroup(ctx, sourceConnectionID, groupID); err != nil {
				return err
			}
		}
		return p.upsertAdds(ctx, sourceConnectionID, organizationID, sourceName, result)
	}

	var adds []Membership
	for _, change := range result.Changes {
		switch change.Op {
		case "REMOVE":
			if err := p.Store.DeleteMember(ctx, sourceConnectionID, change.GroupID, change.MemberID, memberTypeOf(change)); err != nil {
				return err
			}
		case "ADD":
			adds = append(adds, membershipOf(sourceConnectionID, organizationID, sourceName, change))
		}
	}
	return p.Store.BulkUpsert(ctx, adds)
}

func (p *Pipeline) upsertAdds(ctx context.Context, sourceConnectionID, organizationID, sourceName string, result *syncsource.DirSyncResult) error {
	var adds []Membership
	for _, change := range result.Changes {
		if change.Op != "ADD" {
			continue
		}
		adds = append(adds, membershipOf(sourceConnectionID, organizationID, sourceName, change))
	}
	return p.Store.BulkUpsert(ctx, adds)
}

// memberTypeOf defaults to "user" when a feed omits MemberType, since most
// directory-sync feeds only ever report user membership.
func memberTypeOf(change syncsource.DirSyncChange) string {
	if change.MemberType == "" {
		return "user"
	}
	return change.MemberType
}

func membershipOf(sourceConnectionID, organizationID, sourceName string, change syncsource.DirSyncChange) Membership {
	return Membership{
		OrganizationID:     organizationID,
		SourceConnectionID: sourceConnectionID,
		GroupID:            change.GroupID,
		GroupName:          change.GroupName,
		MemberID:           change.MemberID,
		MemberType:         memberTypeOf(change),
		SourceName:         sourceName,
	}
}

// fullResync discards every row for sourceConnectionID and rebuilds from
// result.Changes' ADD entries, the fallback spec.md §4.9 requires when
// incremental/BASIC application fails partway through.
func (p *Pipeline) fullResync(ctx context.Context, sourceConnectionID, organizationID, sourceName string, result *syncsource.DirSyncResult) error {
	if err := p.Store.DeleteAllForSource(ctx, sourceConnectionID); err != nil {
		return err
	}
	return p.upsertAdds(ctx, sourceConnectionID, organizationID, sourceName, result)
}
