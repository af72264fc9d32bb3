package core

import (
	"time"
)

// JobTypeEmailExtraction identifies an ETL run against the mail provider.
const JobTypeEmailExtraction = "email_extraction"

// JobTypeIndexRebuild identifies a rebuild of the search index from the record store.
const JobTypeIndexRebuild = "index_rebuild"

// Email is the canonical, provider-independent record of a single message.
// ID is the provider's message id and doubles as the search index document id.
type Email struct {
	ID          string
	ThreadID    *string
	Subject     string
	Body        string
	FromName    string
	FromEmail   string
	ToName      string
	ToEmail     string
	Date        *int64     // Unix seconds as reported by the provider
	CreatedAt   time.Time  // Assigned by the record store
	UpdatedAt   time.Time  // Assigned by the record store
	ProcessedAt *time.Time // Stamped by the transformer
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Jobs move PENDING -> RUNNING -> {COMPLETED | FAILED} exactly once.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job records one execution of the ETL pipeline or an index rebuild.
type Job struct {
	ID               int64
	JobType          string
	Status           JobStatus
	RecordsProcessed int
	ErrorMessage     *string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// IndexHit is a single search index match.
// Lower Distance means more relevant.
type IndexHit struct {
	ID       string
	Distance float64
	Document string
	Metadata map[string]string
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
