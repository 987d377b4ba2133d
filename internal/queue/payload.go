package queue

import (
	"time"

	"github.com/qualgent/testorch/internal/core"
)

// SubmitRequest is the submission payload accepted by Queue.Submit (spec
// §6.1). Execution fields are accepted verbatim to support state import
// (e.g. restoring a snapshot from another deployment); ordinary callers
// leave them zero.
type SubmitRequest struct {
	OrgID        string `json:"org_id"`
	AppVersionID string `json:"app_version_id"`
	TestPath     string `json:"test_path"`
	Target       string `json:"target"`

	Priority  string `json:"priority,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	JobID     string `json:"job_id,omitempty"`

	// Execution fields, passed through verbatim for state import.
	Status      string  `json:"status,omitempty"`
	Progress    int     `json:"progress,omitempty"`
	RetryCount  int     `json:"retry_count,omitempty"`
	MaxRetries  int     `json:"max_retries,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	DeviceID    *string `json:"device_id,omitempty"`
	AgentID     *string `json:"agent_id,omitempty"`
}

// SubmitResult is returned by Queue.Submit.
type SubmitResult struct {
	JobID   string
	Status  core.Status
	Message string
}

// ListResult is the shape returned by Queue.List (spec §6.2).
type ListResult struct {
	OrgID        string
	StatusFilter string
	Count        int
	Jobs         []*core.Job
}

// QueueStats is the queue portion of stats() (spec §4.2, §6.2).
type QueueStats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
	Total     int
	Groups    int
}

// parseTimeOrZero parses an ISO-8601 timestamp, returning the zero time on
// empty input.
func parseTimeOrZero(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseOptionalTime parses an ISO-8601 timestamp pointer, returning nil for
// a nil or empty input.
func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
