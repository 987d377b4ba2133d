// Package storetest runs a standard compliance suite against any
// store.JobStore implementation, the way the teacher's
// internal/storage/compliance package validates its Storage backends.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/store"
)

// Factory returns a fresh, empty JobStore and a teardown func called after
// the subtest completes.
type Factory func(t *testing.T) (store.JobStore, func())

// RunCompliance exercises Put/Get/Scan/Delete and the read-your-writes and
// idempotent-delete guarantees spec §4.1 requires of every backend.
func RunCompliance(t *testing.T, factory Factory) {
	t.Run("PutThenGet", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()
		ctx := context.Background()

		job := &core.Job{
			JobID:     "job_1",
			OrgID:     "acme",
			Status:    core.StatusQueued,
			Priority:  core.PriorityMedium,
			Target:    core.TargetEmulator,
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, s.Put(ctx, job))

		got, err := s.Get(ctx, "job_1")
		require.NoError(t, err)
		assert.Equal(t, job.OrgID, got.OrgID)
		assert.Equal(t, job.Status, got.Status)
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()

		_, err := s.Get(context.Background(), "does-not-exist")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("PutOverwritesInPlace", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()
		ctx := context.Background()

		job := &core.Job{JobID: "job_2", Status: core.StatusQueued}
		require.NoError(t, s.Put(ctx, job))

		job.Status = core.StatusRunning
		require.NoError(t, s.Put(ctx, job))

		got, err := s.Get(ctx, "job_2")
		require.NoError(t, err)
		assert.Equal(t, core.StatusRunning, got.Status)
	})

	t.Run("ScanReturnsAllPut", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, &core.Job{JobID: "job_3"}))
		require.NoError(t, s.Put(ctx, &core.Job{JobID: "job_4"}))

		all, err := s.Scan(ctx)
		require.NoError(t, err)

		ids := map[string]bool{}
		for _, j := range all {
			ids[j.JobID] = true
		}
		assert.True(t, ids["job_3"])
		assert.True(t, ids["job_4"])
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, &core.Job{JobID: "job_5"}))
		require.NoError(t, s.Delete(ctx, "job_5"))
		require.NoError(t, s.Delete(ctx, "job_5")) // second delete, still no error

		_, err := s.Get(ctx, "job_5")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("ClonesAreIndependent", func(t *testing.T) {
		s, teardown := factory(t)
		defer teardown()
		ctx := context.Background()

		errMsg := "boom"
		job := &core.Job{JobID: "job_6", Error: &errMsg}
		require.NoError(t, s.Put(ctx, job))

		// Mutating the caller's copy after Put must not affect the stored value.
		*job.Error = "mutated"

		got, err := s.Get(ctx, "job_6")
		require.NoError(t, err)
		require.NotNil(t, got.Error)
		assert.Equal(t, "boom", *got.Error)
	})
}
