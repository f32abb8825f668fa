package domain

import (
	"time"
)

// JobRun is one historical execution record of a crawl for one source.
// Append-only: created at job start, updated incrementally, frozen once
// it reaches a terminal status.
type JobRun struct {
	ID           string         `db:"id" json:"id"`
	SourceID     string         `db:"source_id" json:"source_id"`
	Status       JobStatus      `db:"status" json:"status"`
	ItemsFound   int            `db:"items_found" json:"items_found"`
	ItemsNew     int            `db:"items_new" json:"items_new"`
	ItemsUpdated int            `db:"items_updated" json:"items_updated"`
	ItemsRemoved int            `db:"items_removed" json:"items_removed"`
	Errors       JobErrorList   `db:"errors" json:"errors,omitempty"`
	StartedAt    time.Time      `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the run reached a final status.
func (j *JobRun) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Duration returns the run's wall-clock duration, zero while still running.
func (j *JobRun) Duration() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}
