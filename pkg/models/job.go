package models

import (
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a download job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobEvicted   JobState = "evicted"
)

// Terminal reports whether no further transition can occur from s.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobEvicted:
		return true
	default:
		return false
	}
}

// Active reports whether the job still owns its key for coalescing purposes.
// At most one active job per key exists at any time.
func (s JobState) Active() bool {
	return s == JobPending || s == JobRunning
}

// Job tracks one logical request to turn a source URL into an artifact.
// The API returns a job id on POST /api/v1/downloads; the client polls
// GET /api/v1/downloads/{job_id} until the state is terminal.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Key        string     `json:"key"`
	SourceURL  string     `json:"source_url"`
	Profile    Profile    `json:"profile"`
	State      JobState   `json:"state"`
	ErrorKind  *ErrorKind `json:"error_kind,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`
	ArtifactID *uuid.UUID `json:"artifact_id,omitempty"`
	Attempt    int        `json:"attempt"`
	Waiters    int        `json:"waiters"`
	Claimed    bool       `json:"claimed"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
