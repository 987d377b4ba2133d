// Package memory implements store.JobStore with an in-process map. It is
// the default backend (spec §6.4 StoreBackend=memory), suitable for
// development and tests; production deployments durable across restarts
// should configure internal/store/postgres instead.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/qualgent/testorch/internal/core"
)

// Store is a map-backed, mutex-guarded JobStore. Reads take the read lock,
// writes take the write lock; this mirrors the locking discipline of the
// teacher's filesystem-backed store.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*core.Job
}

// New creates an empty in-memory job store.
func New() *Store {
	return &Store{jobs: make(map[string]*core.Job)}
}

// Put writes job unconditionally, storing a defensive clone so callers that
// keep their own reference cannot mutate the stored record out of band.
func (s *Store) Put(_ context.Context, job *core.Job) error {
	if job == nil || job.JobID == "" {
		return fmt.Errorf("%w: job_id is required", core.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job.Clone()
	return nil
}

// Get returns a clone of the stored job, or core.ErrNotFound if absent.
func (s *Store) Get(_ context.Context, id string) (*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", core.ErrNotFound, id)
	}
	return j.Clone(), nil
}

// Scan returns a clone of every job currently stored, in unspecified order.
func (s *Store) Scan(_ context.Context) ([]*core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

// Delete removes id if present; absent keys are a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error {
	return nil
}
