// Package scheduler implements the periodic tick, group assignment, and
// sequential in-group execution described in spec §4.4, along with the
// startup crash-recovery pass of §4.6.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/executor"
	"github.com/qualgent/testorch/internal/ptr"
	"github.com/qualgent/testorch/internal/queue"
	"github.com/qualgent/testorch/internal/respool"
	"github.com/qualgent/testorch/internal/store"
)

// deadLetterCapacity bounds the in-memory ring buffer of recently failed
// jobs exposed for operator visibility; it is not part of durable state.
const deadLetterCapacity = 100

// DeadLetter is a snapshot of a job that reached status=failed, retained for
// operator visibility (supplemented feature, not part of the job record).
type DeadLetter struct {
	JobID   string
	GroupID string
	Error   string
	At      time.Time
}

// Scheduler drives jobs from queued to a terminal status. One Scheduler
// owns one tick loop; the design assumes a single scheduler process per
// deployment (spec §5).
type Scheduler struct {
	store    store.JobStore
	queue    *queue.Queue
	pool     *respool.Pool
	executor executor.TestExecutor
	logger   *slog.Logger

	tickInterval time.Duration

	mu          sync.Mutex
	deadLetters []DeadLetter
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithTickInterval overrides the default 5s tick period.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// New builds a Scheduler over the given store, queue, pool, and executor.
func New(s store.JobStore, q *queue.Queue, p *respool.Pool, exec executor.TestExecutor, opts ...Option) *Scheduler {
	sched := &Scheduler{
		store:        s,
		queue:        q,
		pool:         p,
		executor:     exec,
		logger:       slog.Default(),
		tickInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(sched)
	}
	return sched
}

// Run executes startup recovery once, then ticks every TickInterval until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		s.logger.ErrorContext(ctx, "startup recovery failed", "error", err)
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.ErrorContext(ctx, "tick failed", "error", err)
			}
		}
	}
}

// Recover implements spec §4.6: every job observed scheduled or running at
// startup is demoted back to queued, since the ResourcePool that assigned
// it is process-local and empty after a restart.
func (s *Scheduler) Recover(ctx context.Context) error {
	jobs, err := s.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	for _, job := range jobs {
		if job.Status != core.StatusScheduled && job.Status != core.StatusRunning {
			continue
		}
		job.Status = core.StatusQueued
		job.AgentID = nil
		job.DeviceID = nil
		job.StartedAt = nil
		job.Error = ptr.To(core.ErrResetDueToRestart)

		if err := s.store.Put(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "recovery put failed", "job_id", job.JobID, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "job reset on startup recovery", "job_id", job.JobID)
	}
	return nil
}

// Tick runs one scheduling pass: spec §4.4 steps 1-2.
func (s *Scheduler) Tick(ctx context.Context) error {
	tickID := uuid.NewString()
	logger := s.logger.With("tick_id", tickID)

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if stats.Waiting == 0 {
		return nil
	}

	groups, err := s.queue.Groups(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	for _, group := range groups {
		if group.Status != core.GroupQueued && group.Status != core.GroupRunning {
			continue
		}
		if err := s.processGroup(ctx, group); err != nil {
			logger.ErrorContext(ctx, "process_group failed", "group_id", group.GroupID, "error", err)
		}
	}
	return nil
}

// processGroup implements spec §4.4 steps 1-7.
func (s *Scheduler) processGroup(ctx context.Context, group core.GroupSummary) error {
	var scheduledJobs []*core.Job
	for _, j := range group.Jobs {
		if j.Status == core.StatusScheduled {
			scheduledJobs = append(scheduledJobs, j)
		}
	}

	var (
		locked   []*core.Job
		deviceID string
		agentID  string
	)

	if len(scheduledJobs) > 0 {
		// Step 1: resume an in-flight assignment, e.g. after a mid-tick crash.
		first := scheduledJobs[0]
		if first.DeviceID == nil || first.AgentID == nil {
			return fmt.Errorf("%w: scheduled job %s missing assignment", core.ErrInternal, first.JobID)
		}
		deviceID = *first.DeviceID
		agentID = *first.AgentID

		for _, j := range scheduledJobs {
			locked = append(locked, j)
		}
	} else {
		// Step 2: allocate fresh capacity for queued members.
		var queuedJobs []*core.Job
		for _, j := range group.Jobs {
			if j.Status == core.StatusQueued {
				queuedJobs = append(queuedJobs, j)
			}
		}
		if len(queuedJobs) == 0 {
			return nil
		}
		queue.SortByPriorityThenTimestamp(queuedJobs)

		agent, device, ok := s.pool.FindAvailable(group.Target)
		if !ok {
			return nil
		}
		deviceID, agentID = device.ID, agent.ID

		// Step 3: lock each candidate job by re-reading and transitioning it.
		for _, candidate := range queuedJobs {
			fresh, err := s.store.Get(ctx, candidate.JobID)
			if err != nil {
				continue
			}
			switch fresh.Status {
			case core.StatusQueued:
				fresh.Status = core.StatusScheduled
				fresh.AgentID = ptr.To(agentID)
				fresh.DeviceID = ptr.To(deviceID)
				if err := s.store.Put(ctx, fresh); err != nil {
					continue
				}
				locked = append(locked, fresh)
			case core.StatusScheduled:
				if fresh.AgentID != nil && *fresh.AgentID == agentID {
					locked = append(locked, fresh)
				}
			default:
				// terminal: skip, it is no longer eligible
			}
		}
	}

	// Step 4.
	if len(locked) == 0 {
		if deviceID != "" {
			_ = s.pool.Release(deviceID)
		}
		return nil
	}

	// Step 5.
	jobIDs := make([]string, len(locked))
	for i, j := range locked {
		jobIDs[i] = j.JobID
	}
	if err := s.pool.Acquire(deviceID, jobIDs); err != nil {
		return err
	}

	// Step 6: execute sequentially.
	for i, job := range locked {
		s.executeOne(ctx, job, i, len(locked))
	}

	// Step 7.
	return s.pool.Release(deviceID)
}

// executeOne implements the per-job execution steps nested in process_group
// step 6 (spec §4.4 "Execution of one job").
func (s *Scheduler) executeOne(ctx context.Context, job *core.Job, index, total int) {
	fresh, err := s.store.Get(ctx, job.JobID)
	if err != nil {
		s.logger.ErrorContext(ctx, "execute: get failed", "job_id", job.JobID, "error", err)
		return
	}
	if fresh.Status.Terminal() {
		return
	}

	now := time.Now().UTC()
	fresh.Status = core.StatusRunning
	fresh.StartedAt = &now
	if err := s.store.Put(ctx, fresh); err != nil {
		s.logger.ErrorContext(ctx, "execute: running put failed", "job_id", job.JobID, "error", err)
		return
	}

	result, err := s.executor.Run(ctx, fresh)

	after, getErr := s.store.Get(ctx, job.JobID)
	if getErr != nil {
		s.logger.ErrorContext(ctx, "execute: post-run get failed", "job_id", job.JobID, "error", getErr)
		return
	}
	if after.Status.Terminal() {
		// Cancelled (or otherwise terminated) during execution: honor it,
		// discard the outcome.
		return
	}

	preStatus := after.Status // always StatusRunning here: Terminal() returned false above and no other path regresses a running job

	completedAt := time.Now().UTC()
	after.CompletedAt = &completedAt

	if err != nil {
		after.Status = core.StatusFailed
		after.Error = ptr.To(err.Error())
	} else if result.Outcome == executor.OutcomePass {
		after.Status = core.StatusCompleted
		after.Result = ptr.To(result.Artifact)
	} else {
		after.Status = core.StatusFailed
		after.Error = ptr.To(result.Artifact)
	}

	if after.Status == core.StatusCompleted {
		after.Progress = 100
	} else if preStatus == core.StatusRunning {
		after.Progress = int(math.Round(float64(index+1) / float64(total) * 100))
	}

	if err := s.store.Put(ctx, after); err != nil {
		s.logger.ErrorContext(ctx, "execute: final put failed", "job_id", job.JobID, "error", err)
		return
	}

	if after.Status == core.StatusFailed {
		s.recordDeadLetter(after)
	}
}

func (s *Scheduler) recordDeadLetter(job *core.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errMsg := ""
	if job.Error != nil {
		errMsg = *job.Error
	}
	s.deadLetters = append(s.deadLetters, DeadLetter{
		JobID:   job.JobID,
		GroupID: job.GroupID,
		Error:   errMsg,
		At:      time.Now().UTC(),
	})
	if len(s.deadLetters) > deadLetterCapacity {
		s.deadLetters = s.deadLetters[len(s.deadLetters)-deadLetterCapacity:]
	}
}

// DeadLetters returns a snapshot of the most recent failed jobs, newest last.
func (s *Scheduler) DeadLetters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeadLetter(nil), s.deadLetters...)
}

// Stats returns the scheduler portion of stats() (spec §6.2): agent/device
// counts from the pool, plus the number of jobs currently running.
func (s *Scheduler) Stats(ctx context.Context) (agents int, devices int, running int, err error) {
	agents, devices = s.pool.Stats()

	jobs, scanErr := s.store.Scan(ctx)
	if scanErr != nil {
		return agents, devices, 0, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, scanErr)
	}
	for _, j := range jobs {
		if j.Status == core.StatusRunning {
			running++
		}
	}
	return agents, devices, running, nil
}

// Devices returns the flat device list backing the devices() read API.
func (s *Scheduler) Devices() []core.DeviceView {
	return s.pool.Devices()
}
