package domain

import (
	"encoding/json"
	"time"
)

// JobType selects the executor a job is dispatched to.
type JobType string

const (
	JobTypeDiscovery  JobType = "discovery"
	JobTypeEnrichment JobType = "enrichment"
	JobTypeResearch   JobType = "research"
	JobTypeOutreach   JobType = "outreach"
	JobTypeEmailSend  JobType = "email_send"
)

// JobStatus values. Completed, failed and cancelled are terminal.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobPriority is the primary sort key when claiming.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// PriorityRank maps a priority to its claim-ordering weight.
// Unknown values sort lowest.
func PriorityRank(p JobPriority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ValidJobType reports whether t is a known job type.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeDiscovery, JobTypeEnrichment, JobTypeResearch, JobTypeOutreach, JobTypeEmailSend:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p JobPriority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Job is a durable unit of deferred work.
type Job struct {
	ID              string          `db:"id" json:"id"`
	JobType         JobType         `db:"job_type" json:"job_type"`
	Data            json.RawMessage `db:"data" json:"data"`
	Priority        JobPriority     `db:"priority" json:"priority"`
	Status          JobStatus       `db:"status" json:"status"`
	Provenance      string          `db:"provenance" json:"provenance,omitempty"`
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	MaxRetries      int             `db:"max_retries" json:"max_retries"`
	WorkerID        *string         `db:"worker_id" json:"worker_id,omitempty"`
	Result          json.RawMessage `db:"result" json:"result,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	ScheduledFor    *time.Time      `db:"scheduled_for" json:"scheduled_for,omitempty"`
	RetryAt         *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	StartedAt       *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	FailedAt        *time.Time      `db:"failed_at" json:"failed_at,omitempty"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	LastHeartbeatAt *time.Time      `db:"last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
}

// Terminal reports whether the job can accept no further transitions.
func (j *Job) Terminal() bool {
	return JobStatusTerminal(j.Status)
}

// JobStatusTerminal reports whether s is a terminal job status.
func JobStatusTerminal(s JobStatus) bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
