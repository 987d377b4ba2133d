package core

import "time"

// Job is a single test-execution request with lifecycle state. It is the
// record persisted by the JobStore, keyed by the bare JobID (the memory and
// postgres backends do not add a "job:" prefix).
type Job struct {
	JobID         string   `json:"job_id"`
	OrgID         string   `json:"org_id"`
	AppVersionID  string   `json:"app_version_id"`
	TestPath      string   `json:"test_path"`
	Target        Target   `json:"target"`
	Priority      Priority `json:"priority"`
	Status        Status   `json:"status"`
	Progress      int      `json:"progress"`
	Result        *string  `json:"result,omitempty"`
	Error         *string  `json:"error,omitempty"`
	RetryCount    int      `json:"retry_count"`
	MaxRetries    int      `json:"max_retries"`

	Timestamp   time.Time  `json:"timestamp"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	DeviceID *string `json:"device_id,omitempty"`
	AgentID  *string `json:"agent_id,omitempty"`

	GroupID string `json:"group_id"`
}

// ErrMaxRetriesExceeded is the canonical error string set on a job forced
// into StatusFailed by invariant 6 (retry_count > max_retries).
const ErrMaxRetriesExceeded = "Max retries exceeded"

// ErrResetDueToRestart is the canonical error string set by startup
// recovery on jobs demoted from scheduled/running back to queued.
const ErrResetDueToRestart = "Job reset due to server restart"

// GroupKey derives the group_id for the tuple (org_id, app_version_id, target).
func GroupKey(orgID, appVersionID string, target Target) string {
	return orgID + "_" + appVersionID + "_" + string(target)
}

// DedupKey identifies the (org_id, app_version_id, test_path, target) tuple
// used by Queue.submit to detect duplicate in-flight requests.
type DedupKey struct {
	OrgID        string
	AppVersionID string
	TestPath     string
	Target       Target
}

// Key returns the DedupKey for this job.
func (j *Job) Key() DedupKey {
	return DedupKey{
		OrgID:        j.OrgID,
		AppVersionID: j.AppVersionID,
		TestPath:     j.TestPath,
		Target:       j.Target,
	}
}

// Clone returns a deep-enough copy of the job for safe read-modify-write:
// pointer fields are copied too, so the copy shares no memory with j. The
// in-memory backend clones on every Put, Get and Scan, which is why callers
// may mutate the records it returns without aliasing the stored value.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		v := *j.Result
		c.Result = &v
	}
	if j.Error != nil {
		v := *j.Error
		c.Error = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		c.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		c.CompletedAt = &v
	}
	if j.DeviceID != nil {
		v := *j.DeviceID
		c.DeviceID = &v
	}
	if j.AgentID != nil {
		v := *j.AgentID
		c.AgentID = &v
	}
	return &c
}
