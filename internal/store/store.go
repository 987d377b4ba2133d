// Package store defines the JobStore contract: a durable key->value map from
// job_id to a Job record, plus prefix scan. Concrete backends live in
// internal/store/memory (development/default) and internal/store/postgres
// (production, durable).
package store

import (
	"context"

	"github.com/qualgent/testorch/internal/core"
)

// JobStore is a persistent key->value map from job_id to a serialized job
// record. Put is unconditional and atomic at the single-key level; after
// Put returns, a subsequent Get on the same key observes the written value
// (read-your-writes). Scan returns all records at once as a slice; it is not
// lazy, and it has no snapshot guarantee: callers must re-Get before acting
// on any record a Scan yielded, since another writer may have mutated it
// concurrently.
type JobStore interface {
	// Put writes job unconditionally, keyed by job.JobID.
	Put(ctx context.Context, job *core.Job) error

	// Get returns the job for id, or a wrapped core.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*core.Job, error)

	// Scan returns every job currently in the store. It is not
	// snapshot-consistent: a job added or removed mid-scan may or may not
	// appear.
	Scan(ctx context.Context) ([]*core.Job, error)

	// Delete removes id if present; it is a no-op (not an error) if absent.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// KeyOf returns the "job:{job_id}" key form for a job_id. The memory and
// postgres backends do not call it; they key records by the bare job_id.
func KeyOf(jobID string) string {
	return "job:" + jobID
}
