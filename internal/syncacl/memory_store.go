package syncacl

import "context"

// MemoryMembershipStore is an in-process MembershipStore, used by tests.
type MemoryMembershipStore struct {
	rows map[string]Membership // key: sourceConnectionID|groupID|memberID|memberType
}

// NewMemoryMembershipStore returns an empty store.
func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{rows: make(map[string]Membership)}
}

func membershipKey(sourceConnectionID, groupID, memberID, memberType string) string {
	return sourceConnectionID + "|" + groupID + "|" + memberID + "|" + memberType
}

func (m *MemoryMembershipStore) BulkUpsert(_ context.Context, rows []Membership) error {
	for _, r := range rows {
		m.rows[membershipKey(r.SourceConnectionID, r.GroupID, r.MemberID, r.MemberType)] = r
	}
	return nil
}

func (m *MemoryMembershipStore) DeleteMember(_ context.Context, sourceConnectionID, groupID, memberID, memberType string) error {
	delete(m.rows, membershipKey(sourceConnectionID, groupID, memberID, memberType))
	return nil
}

func (m *MemoryMembershipStore) DeleteByGroup(_ context.Context, sourceConnectionID, groupID string) error {
	for k, r := range m.rows {
		if r.SourceConnectionID == sourceConnectionID && r.GroupID == groupID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *MemoryMembershipStore) DeleteAllForSource(_ context.Context, sourceConnectionID string) error {
	for k, r := range m.rows {
		if r.SourceConnectionID == sourceConnectionID {
			delete(m.rows, k)
		}
	}
	return nil
}

// Members returns every row for a group, for test assertions.
func (m *MemoryMembershipStore) Members(sourceConnectionID, groupID string) []Membership {
	var out []Membership
	for _, r := range m.rows {
		if r.SourceConnectionID == sourceConnectionID && r.GroupID == groupID {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the total number of rows for a source connection.
func (m *MemoryMembershipStore) Count(sourceConnectionID string) int {
	n := 0
	for _, r := range m.rows {
		if r.SourceConnectionID == sourceConnectionID {
			n++
		}
	}
	return n
}
