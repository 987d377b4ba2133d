package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/queue"
	"github.com/qualgent/testorch/internal/store"
	"github.com/qualgent/testorch/internal/store/memory"
)

func newQueue(t *testing.T) (*queue.Queue, store.JobStore) {
	t.Helper()
	s := memory.New()
	return queue.New(s), s
}

func validReq() queue.SubmitRequest {
	return queue.SubmitRequest{
		OrgID:        "org1",
		AppVersionID: "v1",
		TestPath:     "tests/login.spec",
		Target:       string(core.TargetEmulator),
	}
}

func TestSubmit_AssignsJobIDAndGroupID(t *testing.T) {
	q, _ := newQueue(t)
	res, err := q.Submit(context.Background(), validReq())
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, core.StatusQueued, res.Status)

	job, err := q.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "org1_v1_emulator", job.GroupID)
	assert.Equal(t, core.PriorityMedium, job.Priority)
	assert.Equal(t, 3, job.MaxRetries)
}

func TestSubmit_RejectsInvalidTarget(t *testing.T) {
	q, _ := newQueue(t)
	req := validReq()
	req.Target = "toaster"
	_, err := q.Submit(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_DeduplicatesAgainstNonTerminalJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	first, err := q.Submit(ctx, validReq())
	require.NoError(t, err)

	second, err := q.Submit(ctx, validReq())
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, "duplicate", second.Message)
}

func TestSubmit_DoesNotDeduplicateAgainstTerminalJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	first, err := q.Submit(ctx, validReq())
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, first.JobID))

	second, err := q.Submit(ctx, validReq())
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestCancel_RejectsTerminalJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	res, err := q.Submit(ctx, validReq())
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, res.JobID))

	err = q.Cancel(ctx, res.JobID)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestRetry_IncrementsRetryCountAndRequeues(t *testing.T) {
	q, s := newQueue(t)
	ctx := context.Background()

	res, err := q.Submit(ctx, validReq())
	require.NoError(t, err)

	job, err := q.Get(ctx, res.JobID)
	require.NoError(t, err)
	job.Status = core.StatusFailed
	job.RetryCount = 1
	require.NoError(t, s.Put(ctx, job))

	require.NoError(t, q.Retry(ctx, res.JobID))

	job, err = q.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, job.Status)
	assert.Equal(t, 2, job.RetryCount)
}

func TestRetry_RejectsAtMaxRetries(t *testing.T) {
	q, s := newQueue(t)
	ctx := context.Background()

	res, err := q.Submit(ctx, validReq())
	require.NoError(t, err)

	job, err := q.Get(ctx, res.JobID)
	require.NoError(t, err)
	job.Status = core.StatusFailed
	job.RetryCount = job.MaxRetries
	require.NoError(t, s.Put(ctx, job))

	err = q.Retry(ctx, res.JobID)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	job, err = q.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, core.ErrMaxRetriesExceeded, *job.Error)
}

func TestGroups_OrdersByPriorityThenTimestamp(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	low := validReq()
	low.TestPath = "a.spec"
	low.Priority = string(core.PriorityLow)
	low.Timestamp = time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	_, err := q.Submit(ctx, low)
	require.NoError(t, err)

	high := validReq()
	high.TestPath = "b.spec"
	high.Priority = string(core.PriorityHigh)
	high.Timestamp = time.Now().UTC().Format(time.RFC3339)
	_, err = q.Submit(ctx, high)
	require.NoError(t, err)

	groups, err := q.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Jobs, 2)
	assert.Equal(t, core.PriorityHigh, groups[0].Jobs[0].Priority)
	assert.Equal(t, core.GroupQueued, groups[0].Status)
}

func TestSubmit_ImportsExecutionState(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	startedAt := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	completedAt := time.Now().UTC().Format(time.RFC3339)

	req := validReq()
	req.Status = string(core.StatusCompleted)
	req.Progress = 100
	req.RetryCount = 1
	req.MaxRetries = 3
	req.StartedAt = &startedAt
	req.CompletedAt = &completedAt

	res, err := q.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.Equal(t, "imported", res.Message)

	job, err := q.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
}

func TestSubmit_RejectsInconsistentImportedState(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	req := validReq()
	req.Status = string(core.StatusCompleted)
	req.Progress = 50 // invariant 2 violation: progress=100 iff status=completed

	_, err := q.Submit(ctx, req)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmit_RejectsScheduledImportWithoutAssignment(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	req := validReq()
	req.Status = string(core.StatusScheduled)

	_, err := q.Submit(ctx, req)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStats_CountsByStatus(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	_, err := q.Submit(ctx, validReq())
	require.NoError(t, err)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 1, stats.Groups)
}
