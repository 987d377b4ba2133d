// Package executor defines the TestExecutor collaborator the Scheduler
// invokes to run one job (spec §4.5). Real device/browser control is out
// of scope for the core; this package provides only the contract and a
// simulated reference implementation used by the Scheduler in tests and
// stand-alone mode.
package executor

import (
	"context"
	"math/rand"
	"time"

	"github.com/qualgent/testorch/internal/core"
)

// Outcome is the result of running one job.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Result is returned by TestExecutor.Run.
type Result struct {
	Outcome  Outcome
	Artifact string
}

// TestExecutor runs one job to completion. Run must not mutate the
// JobStore; it is a pure function of job (non-deterministic outcome is
// allowed) that may block for a bounded time.
type TestExecutor interface {
	Run(ctx context.Context, job *core.Job) (Result, error)
}

// Reference is the simulated TestExecutor: sleeps uniformly within
// [MinLatency, MaxLatency], then reports OutcomePass with probability
// PassProbability, else OutcomeFail.
type Reference struct {
	MinLatency      time.Duration
	MaxLatency      time.Duration
	PassProbability float64
	rand            *rand.Rand
}

// NewReference builds a Reference executor with the spec's defaults:
// latency uniform in [1000, 5000]ms, 90% pass probability.
func NewReference() *Reference {
	return &Reference{
		MinLatency:      1 * time.Second,
		MaxLatency:      5 * time.Second,
		PassProbability: 0.9,
		rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks for a simulated test duration then reports pass/fail.
func (r *Reference) Run(ctx context.Context, job *core.Job) (Result, error) {
	spread := r.MaxLatency - r.MinLatency
	delay := r.MinLatency
	if spread > 0 {
		delay += time.Duration(r.rand.Int63n(int64(spread)))
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if r.rand.Float64() < r.PassProbability {
		return Result{Outcome: OutcomePass, Artifact: "test " + job.TestPath + " passed on " + string(job.Target)}, nil
	}
	return Result{Outcome: OutcomeFail, Artifact: "test " + job.TestPath + " failed on " + string(job.Target)}, nil
}
