package syncstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store, used by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]*Record // sync_id -> entity_id -> record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]map[string]*Record)}
}

func (m *MemoryStore) GetByEntityAndSync(_ context.Context, syncID, entityID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySync, ok := m.rows[syncID]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := bySync[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) Upsert(_ context.Context, rec *Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySync, ok := m.rows[rec.SyncID]
	if !ok {
		bySync = make(map[string]*Record)
		m.rows[rec.SyncID] = bySync
	}

	cp := *rec
	if existing, ok := bySync[rec.EntityID]; ok {
		cp.ID = existing.ID
	} else if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.ModifiedAt = time.Now().UTC()
	bySync[rec.EntityID] = &cp

	out := cp
	return &out, nil
}

func (m *MemoryStore) ListEntityIDs(_ context.Context, syncID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySync := m.rows[syncID]
	ids := make([]string, 0, len(bySync))
	for id := range bySync {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) DeleteNotIn(_ context.Context, syncID string, keep []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySync, ok := m.rows[syncID]
	if !ok {
		return nil, nil
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	var removed []string
	for id := range bySync {
		if _, ok := keepSet[id]; !ok {
			removed = append(removed, id)
			delete(bySync, id)
		}
	}
	return removed, nil
}

func (m *MemoryStore) DeleteByEntityAndSync(_ context.Context, syncID, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bySync, ok := m.rows[syncID]; ok {
		delete(bySync, entityID)
	}
	return nil
}

func (m *MemoryStore) CountBySync(_ context.Context, syncID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rows[syncID])), nil
}
