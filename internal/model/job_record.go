package model

import (
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// FailureKind classifies a job-fatal error.
type FailureKind string

const (
	FailureExtraction  FailureKind = "extraction"
	FailurePersistence FailureKind = "persistence"
	FailureIntegrity   FailureKind = "integrity"
)

var ErrIllegalTransition = errors.New("illegal job status transition")

// JobRecord tracks the processing lifecycle of one source item.
// Only the ingestion worker moves a record out of pending; Reset is the only
// way back to pending.
type JobRecord struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	SourceKind   SourceKind  `gorm:"size:16;not null;uniqueIndex:idx_job_source,priority:1" json:"source_kind"`
	SourceID     uint        `gorm:"not null;uniqueIndex:idx_job_source,priority:2" json:"source_id"`
	Status       JobStatus   `gorm:"size:16;not null;index" json:"status"`
	QueuedAt     time.Time   `gorm:"not null;index" json:"queued_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	HeartbeatAt  *time.Time  `json:"heartbeat_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	ErrorKind    FailureKind `gorm:"size:16" json:"error_kind,omitempty"`
	ClaimedBy    string      `gorm:"size:64" json:"claimed_by,omitempty"`
	Attempts     int         `gorm:"not null;default:0" json:"attempts"`
}

func (j *JobRecord) Source() SourceRef {
	return SourceRef{Kind: j.SourceKind, ID: j.SourceID}
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether the worker may move a job from one status to another.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobProcessing
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

func (j *JobRecord) transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Start moves a pending job to processing.
func (j *JobRecord) Start(now time.Time, workerID string) error {
	if err := j.transition(JobProcessing); err != nil {
		return err
	}
	j.StartedAt = &now
	j.HeartbeatAt = &now
	j.ClaimedBy = workerID
	j.Attempts++
	return nil
}

func (j *JobRecord) Complete(now time.Time) error {
	if err := j.transition(JobCompleted); err != nil {
		return err
	}
	j.CompletedAt = &now
	return nil
}

func (j *JobRecord) Fail(now time.Time, kind FailureKind, message string) error {
	if err := j.transition(JobFailed); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.ErrorKind = kind
	j.ErrorMessage = message
	return nil
}

// Reset returns a terminal job to pending for reprocessing.
func (j *JobRecord) Reset(now time.Time) error {
	if !j.Status.Terminal() {
		return fmt.Errorf("%w: reset from %s", ErrIllegalTransition, j.Status)
	}
	j.Status = JobPending
	j.QueuedAt = now
	j.StartedAt = nil
	j.HeartbeatAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = ""
	j.ErrorKind = ""
	j.ClaimedBy = ""
	return nil
}
