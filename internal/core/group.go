package core

import "time"

// GroupStatus is the aggregate status of a Group, derived from its members.
type GroupStatus string

const (
	GroupRunning   GroupStatus = "running"
	GroupFailed    GroupStatus = "failed"
	GroupCompleted GroupStatus = "completed"
	GroupQueued    GroupStatus = "queued"
)

// GroupSummary is the derived, never-persisted view of a Group returned by
// Queue.Groups.
type GroupSummary struct {
	GroupID       string      `json:"group_id"`
	OrgID         string      `json:"org_id"`
	AppVersionID  string      `json:"app_version_id"`
	Target        Target      `json:"target"`
	JobCount      int         `json:"job_count"`
	Status        GroupStatus `json:"status"`
	OldestJob     time.Time   `json:"oldest_job"`
	NewestJob     time.Time   `json:"newest_job"`
	Jobs          []*Job      `json:"-"` // member jobs, priority desc then timestamp asc
}

// DeriveGroupStatus computes a group's aggregate status from its non-terminal
// and terminal members per spec §3.3: running if any member is running;
// else failed if any failed and none running; else completed if all
// completed; else queued.
func DeriveGroupStatus(jobs []*Job) GroupStatus {
	anyRunning, anyFailed, allCompleted := false, false, len(jobs) > 0
	for _, j := range jobs {
		switch j.Status {
		case StatusRunning:
			anyRunning = true
		case StatusFailed:
			anyFailed = true
		}
		if j.Status != StatusCompleted {
			allCompleted = false
		}
	}
	switch {
	case anyRunning:
		return GroupRunning
	case anyFailed:
		return GroupFailed
	case allCompleted:
		return GroupCompleted
	default:
		return GroupQueued
	}
}
