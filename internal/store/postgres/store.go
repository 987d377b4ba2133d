package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qualgent/testorch/internal/core"
)

// Store is a PostgreSQL-backed store.JobStore: one row per job, keyed by
// job_id, value stored as JSONB. No secondary indices are persisted (spec
// §6.3); all filtered queries (Queue.list/stats/groups) scan in the
// application layer.
type Store struct {
	pool *pgxpool.Pool
}

// Put upserts job by job_id.
func (s *Store) Put(ctx context.Context, job *core.Job) error {
	if job == nil || job.JobID == "" {
		return fmt.Errorf("%w: job_id is required", core.ErrValidation)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal job: %v", core.ErrInternal, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, job.JobID, data)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the job for id, or a wrapped core.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*core.Job, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM jobs WHERE job_id = $1`, id).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: job %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	var job core.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal job: %v", core.ErrInternal, err)
	}
	return &job, nil
}

// Scan returns every job currently stored, in unspecified order.
func (s *Store) Scan(ctx context.Context) ([]*core.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*core.Job
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		var job core.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal job: %v", core.ErrInternal, err)
		}
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Delete removes id if present; absent keys are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
