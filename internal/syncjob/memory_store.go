package syncjob

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store, used by tests.
type MemoryStore struct {
	mu           sync.Mutex
	jobs         map[string]*SyncJob
	destinations map[string][]Destination
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         make(map[string]*SyncJob),
		destinations: make(map[string][]Destination),
	}
}

func (m *MemoryStore) Create(_ context.Context, job *SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (*SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, jobID string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	now := time.Now().UTC()
	if status == StatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.terminal() {
		job.EndedAt = &now
	}
	return nil
}

func (m *MemoryStore) SaveCursor(_ context.Context, jobID string, cursor *Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Cursor = cursor
	return nil
}

func (m *MemoryStore) RecordStats(_ context.Context, jobID string, inserted, updated, kept, skipped, failed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Inserted, job.Updated, job.Kept, job.Skipped, job.Failed = inserted, updated, kept, skipped, failed
	return nil
}

func (m *MemoryStore) ListDestinations(_ context.Context, syncID string) ([]Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Destination(nil), m.destinations[syncID]...), nil
}

// AddDestination is test/seed-data plumbing, not part of the Store contract.
func (m *MemoryStore) AddDestination(d Destination) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[d.SyncID] = append(m.destinations[d.SyncID], d)
}

func (m *MemoryStore) ReplaceDestinations(_ context.Context, syncID string, destinations []Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[syncID] = append([]Destination(nil), destinations...)
	return nil
}
