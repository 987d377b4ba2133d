// Package queue implements the submission gateway and read API for jobs:
// validation, deduplication, submission, cancel, retry, listing, and
// stats/groups aggregation (spec §4.2).
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/ptr"
	"github.com/qualgent/testorch/internal/store"
)

// Queue is the submission gateway and read API over a JobStore.
type Queue struct {
	store           store.JobStore
	logger          *slog.Logger
	defaultPriority core.Priority
	defaultTarget   core.Target
	maxRetries      int
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger overrides the default (no-op-safe) logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithDefaultPriority overrides the priority used when a submission omits one.
func WithDefaultPriority(p core.Priority) Option {
	return func(q *Queue) { q.defaultPriority = p }
}

// WithDefaultTarget records the configured default target. Submit does not
// fall back to it: a submission without a target is rejected.
func WithDefaultTarget(t core.Target) Option {
	return func(q *Queue) { q.defaultTarget = t }
}

// WithMaxRetries overrides the default max_retries for new jobs.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// New creates a Queue backed by s.
func New(s store.JobStore, opts ...Option) *Queue {
	q := &Queue{
		store:           s,
		logger:          slog.Default(),
		defaultPriority: core.PriorityMedium,
		defaultTarget:   core.TargetEmulator,
		maxRetries:      3,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit validates req, deduplicates against in-flight jobs sharing
// (org_id, app_version_id, test_path, target), and otherwise persists a new
// queued job (spec §4.2).
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := validate(req); err != nil {
		return SubmitResult{}, err
	}

	target := core.Target(req.Target)
	priority := core.Priority(req.Priority)
	if priority == "" {
		priority = q.defaultPriority
	}

	existing, err := q.store.Scan(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	key := core.DedupKey{OrgID: req.OrgID, AppVersionID: req.AppVersionID, TestPath: req.TestPath, Target: target}
	for _, j := range existing {
		if j.Key() == key && j.Status.NonTerminal() {
			q.logger.InfoContext(ctx, "submit deduplicated", "job_id", j.JobID, "status", j.Status)
			return SubmitResult{JobID: j.JobID, Status: j.Status, Message: "duplicate"}, nil
		}
	}

	timestamp, err := parseTimeOrZero(req.Timestamp)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: invalid timestamp: %v", core.ErrValidation, err)
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = NewJobID()
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}

	status := core.StatusQueued
	if req.Status != "" {
		status = core.Status(req.Status)
	}

	startedAt, err := parseOptionalTime(req.StartedAt)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: invalid started_at: %v", core.ErrValidation, err)
	}
	completedAt, err := parseOptionalTime(req.CompletedAt)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: invalid completed_at: %v", core.ErrValidation, err)
	}

	job := &core.Job{
		JobID:        jobID,
		OrgID:        req.OrgID,
		AppVersionID: req.AppVersionID,
		TestPath:     req.TestPath,
		Target:       target,
		Priority:     priority,
		Status:       status,
		Progress:     req.Progress,
		RetryCount:   req.RetryCount,
		MaxRetries:   maxRetries,
		Timestamp:    timestamp,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		DeviceID:     req.DeviceID,
		AgentID:      req.AgentID,
		GroupID:      core.GroupKey(req.OrgID, req.AppVersionID, target),
	}

	if err := validateImportedState(job); err != nil {
		return SubmitResult{}, err
	}

	if err := q.store.Put(ctx, job); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	message := "queued"
	if job.Status != core.StatusQueued {
		message = "imported"
	}

	q.logger.InfoContext(ctx, "job submitted", "job_id", job.JobID, "status", job.Status, "group_id", job.GroupID)
	return SubmitResult{JobID: job.JobID, Status: job.Status, Message: message}, nil
}

// validateImportedState checks the invariants of spec §3.1 against a job
// built from a submission payload's execution fields (§6.1's "passed
// through verbatim to support state import"). Ordinary submissions, which
// leave those fields zero, always pass trivially.
func validateImportedState(job *core.Job) error {
	if !job.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", core.ErrValidation, job.Status)
	}
	if job.Progress < 0 || job.Progress > 100 {
		return fmt.Errorf("%w: progress must be 0-100, got %d", core.ErrValidation, job.Progress)
	}
	if (job.Progress == 100) != (job.Status == core.StatusCompleted) {
		return fmt.Errorf("%w: progress=100 iff status=completed", core.ErrValidation)
	}
	if job.RetryCount > job.MaxRetries {
		return fmt.Errorf("%w: retry_count %d exceeds max_retries %d", core.ErrValidation, job.RetryCount, job.MaxRetries)
	}

	switch job.Status {
	case core.StatusQueued, core.StatusRetrying:
		if job.DeviceID != nil || job.AgentID != nil {
			return fmt.Errorf("%w: device_id/agent_id must be unset in status %s", core.ErrValidation, job.Status)
		}
	case core.StatusScheduled, core.StatusRunning:
		if job.DeviceID == nil || job.AgentID == nil {
			return fmt.Errorf("%w: device_id/agent_id must be set in status %s", core.ErrValidation, job.Status)
		}
	}

	switch job.Status {
	case core.StatusRunning, core.StatusCompleted, core.StatusFailed:
		if job.StartedAt == nil {
			return fmt.Errorf("%w: started_at must be set in status %s", core.ErrValidation, job.Status)
		}
	}

	if job.Status.Terminal() && job.CompletedAt == nil {
		return fmt.Errorf("%w: completed_at must be set in terminal status %s", core.ErrValidation, job.Status)
	}

	return nil
}

// Get returns the job for id, or a wrapped core.ErrNotFound if absent.
func (q *Queue) Get(ctx context.Context, id string) (*core.Job, error) {
	return q.store.Get(ctx, id)
}

// List returns jobs filtered by org_id and, when non-empty, status.
func (q *Queue) List(ctx context.Context, orgID string, status core.Status) (ListResult, error) {
	all, err := q.store.Scan(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	var out []*core.Job
	for _, j := range all {
		if j.OrgID != orgID {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}

	return ListResult{OrgID: orgID, StatusFilter: string(status), Count: len(out), Jobs: out}, nil
}

// Cancel sets status=cancelled on a non-terminal job. Concurrent scheduler
// assignment is resolved by last-writer-wins on persist (spec §4.2): the
// scheduler detects the terminal status on its next read before executing.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	job, err := q.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", core.ErrInvalidState, jobID, job.Status)
	}

	job.Status = core.StatusCancelled
	now := time.Now().UTC()
	job.CompletedAt = &now

	if err := q.store.Put(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	q.logger.InfoContext(ctx, "job cancelled", "job_id", jobID)
	return nil
}

// Retry requeues a failed/retrying job, incrementing retry_count, unless
// that would exceed max_retries (in which case the job is left/forced
// failed per invariant 6 and InvalidState is returned).
func (q *Queue) Retry(ctx context.Context, jobID string) error {
	job, err := q.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != core.StatusFailed && job.Status != core.StatusRetrying {
		return fmt.Errorf("%w: job %s is %s, not retriable", core.ErrInvalidState, jobID, job.Status)
	}
	if job.RetryCount >= job.MaxRetries {
		job.Status = core.StatusFailed
		job.Error = ptr.To(core.ErrMaxRetriesExceeded)
		_ = q.store.Put(ctx, job) // best-effort; job was already failed
		return fmt.Errorf("%w: retry_count %d already at max_retries %d", core.ErrInvalidState, job.RetryCount, job.MaxRetries)
	}

	job.RetryCount++
	job.Status = core.StatusQueued
	job.Error = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.DeviceID = nil
	job.AgentID = nil

	if err := q.store.Put(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	q.logger.InfoContext(ctx, "job retried", "job_id", jobID, "retry_count", job.RetryCount)
	return nil
}

// Stats scans all jobs and returns the aggregate counts of spec §4.2/§6.2.
func (q *Queue) Stats(ctx context.Context) (QueueStats, error) {
	all, err := q.store.Scan(ctx)
	if err != nil {
		return QueueStats{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	groupIDs := make(map[string]bool)
	var stats QueueStats
	for _, j := range all {
		stats.Total++
		switch j.Status {
		case core.StatusQueued, core.StatusScheduled:
			stats.Waiting++
		case core.StatusRunning:
			stats.Active++
		case core.StatusCompleted:
			stats.Completed++
		case core.StatusFailed:
			stats.Failed++
		}
		if j.Status.NonTerminal() {
			groupIDs[j.GroupID] = true
		}
	}
	stats.Groups = len(groupIDs)
	return stats, nil
}

// Groups buckets every non-terminal job by group_id, sorts each bucket by
// priority desc then timestamp asc, and returns one summary per group
// (spec §4.2).
func (q *Queue) Groups(ctx context.Context) ([]core.GroupSummary, error) {
	all, err := q.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	buckets := make(map[string][]*core.Job)
	for _, j := range all {
		if j.Status.NonTerminal() {
			buckets[j.GroupID] = append(buckets[j.GroupID], j)
		}
	}

	var summaries []core.GroupSummary
	for groupID, jobs := range buckets {
		SortByPriorityThenTimestamp(jobs)

		oldest, newest := jobs[0].Timestamp, jobs[0].Timestamp
		for _, j := range jobs {
			if j.Timestamp.Before(oldest) {
				oldest = j.Timestamp
			}
			if j.Timestamp.After(newest) {
				newest = j.Timestamp
			}
		}

		summaries = append(summaries, core.GroupSummary{
			GroupID:      groupID,
			OrgID:        jobs[0].OrgID,
			AppVersionID: jobs[0].AppVersionID,
			Target:       jobs[0].Target,
			JobCount:     len(jobs),
			Status:       core.DeriveGroupStatus(jobs),
			OldestJob:    oldest,
			NewestJob:    newest,
			Jobs:         jobs,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].GroupID < summaries[j].GroupID })
	return summaries, nil
}

// SortByPriorityThenTimestamp orders jobs priority desc, then timestamp asc,
// the ordering spec §4.4 requires within a group.
func SortByPriorityThenTimestamp(jobs []*core.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		pi, pj := jobs[i].Priority.Rank(), jobs[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return jobs[i].Timestamp.Before(jobs[j].Timestamp)
	})
}

func validate(req SubmitRequest) error {
	if l := len(req.OrgID); l < 1 || l > 100 {
		return fmt.Errorf("%w: org_id must be 1-100 chars", core.ErrValidation)
	}
	if l := len(req.AppVersionID); l < 1 || l > 100 {
		return fmt.Errorf("%w: app_version_id must be 1-100 chars", core.ErrValidation)
	}
	if req.TestPath == "" {
		return fmt.Errorf("%w: test_path is required", core.ErrValidation)
	}
	if req.Target == "" {
		return fmt.Errorf("%w: target is required", core.ErrValidation)
	}
	if !core.Target(req.Target).Valid() {
		return fmt.Errorf("%w: invalid target %q", core.ErrValidation, req.Target)
	}
	if req.Priority != "" && !core.Priority(req.Priority).Valid() {
		return fmt.Errorf("%w: invalid priority %q", core.ErrValidation, req.Priority)
	}
	return nil
}
