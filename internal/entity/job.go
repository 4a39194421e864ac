package entity

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a conversion job. Values are stored
// verbatim in the record store and reported verbatim over the API.
type State string

const (
	StatePending    State = "PENDING"
	StateStarted    State = "STARTED"
	StateProcessing State = "PROCESSING"
	StateRetry      State = "RETRY"
	StateSuccess    State = "SUCCESS"
	StateFailure    State = "FAILURE"
	StateRevoked    State = "REVOKED"
)

// Terminal reports whether s allows no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	}
	return false
}

// Claimed reports whether a job in this state is held by an executor.
func (s State) Claimed() bool {
	switch s {
	case StateStarted, StateProcessing, StateRetry:
		return true
	}
	return false
}

// CountsTowardQuota reports whether a job in this state still occupies one
// of its owner's quota slots. Failed and revoked jobs release theirs.
func (s State) CountsTowardQuota() bool {
	return s != StateFailure && s != StateRevoked
}

// CanTransitionTo validates a lifecycle transition. Both record store
// implementations reject writes that would violate it.
func (s State) CanTransitionTo(to State) bool {
	switch s {
	case StatePending:
		return to == StateStarted || to == StateRevoked
	case StateStarted, StateProcessing, StateRetry:
		switch to {
		case StateStarted, StateProcessing, StateRetry:
			return to != s
		case StateSuccess, StateFailure, StateRevoked:
			return true
		}
		return false
	default:
		// terminal or unknown
		return false
	}
}

// ArtifactRef points at a stored artifact. Name is the user-facing file
// name, Key locates the blob inside the artifact store backend.
type ArtifactRef struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Job is the durable record of a single conversion request. The record
// store is the source of truth for lifecycle state; live stage/progress
// lives in the status tracker and is lost on tracker restart.
type Job struct {
	ID           uuid.UUID    `json:"id"`
	Owner        string       `json:"owner"`
	Voice        string       `json:"voice,omitempty"`
	Status       State        `json:"status"`
	Input        *ArtifactRef `json:"input,omitempty"`
	Output       *ArtifactRef `json:"output,omitempty"`
	ErrorSummary *string      `json:"error_summary,omitempty"`
	ErrorDetail  *string      `json:"error_detail,omitempty"`
	Lease        *uuid.UUID   `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// Duration returns elapsed execution time: completed-started for finished
// jobs, now-started for running ones, zero before the job is claimed.
func (j *Job) Duration(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return now.Sub(*j.StartedAt)
}

// Snapshot is the ephemeral live status of a running job. Progress is a
// percentage in [0, 100] and never decreases within one execution attempt.
type Snapshot struct {
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
