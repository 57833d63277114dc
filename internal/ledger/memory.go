package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Store kept in process memory. It is used when no database is
// configured and in tests.
type Memory struct {
	mu   sync.Mutex
	jobs map[string]Job
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]Job)}
}

// Create stores job, rejecting a second job for the same tenant, kind and target.
func (m *Memory) Create(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.jobs {
		if existing.TenantID == job.TenantID && existing.Kind == job.Kind && existing.TargetID == job.TargetID {
			return ErrDuplicateJob
		}
	}
	m.jobs[job.ID] = job
	return nil
}

// Get returns the job or nil when the tenant has no such job.
func (m *Memory) Get(_ context.Context, tenantID, jobID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return nil, nil
	}
	return &job, nil
}

// List returns a tenant's jobs newest first.
func (m *Memory) List(_ context.Context, tenantID string, cursor *Cursor, limit int) ([]Job, *Cursor, error) {
	if limit <= 0 {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]Job, 0, limit)
	for _, job := range m.jobs {
		if job.TenantID == tenantID && cursor.Before(job) {
			results = append(results, job)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	var next *Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// Claim leases due jobs, oldest poll first.
func (m *Memory) Claim(_ context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := make([]Job, 0, limit)
	for _, job := range m.jobs {
		if !job.Terminal && !job.NextPollAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextPollAt.Equal(due[j].NextPollAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextPollAt.Before(due[j].NextPollAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].NextPollAt = now.Add(lease)
		m.jobs[due[i].ID] = due[i]
	}
	return due, nil
}

// Update replaces a stored job.
func (m *Memory) Update(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[job.ID] = job
	return nil
}
