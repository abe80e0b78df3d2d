package models

import "time"

// RunStatus captures the sync-run lifecycle states.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "QUEUED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusFinished   RunStatus = "FINISHED"
	RunStatusFailed     RunStatus = "FAILED"
)

// SyncRun is the persisted bookkeeping row for one aggregation run.
// It carries metadata and counters only; the fetched schedule itself is
// never written to the database.
type SyncRun struct {
	ID              string     `db:"id" json:"id"`
	Status          RunStatus  `db:"status" json:"status"`
	Timezone        string     `db:"timezone" json:"timezone"`
	Completed       int        `db:"completed" json:"completed"`
	Total           int        `db:"total" json:"total"`
	Progress        int        `db:"progress" json:"progress"`
	CourseCount     int        `db:"course_count" json:"course_count"`
	AssignmentCount int        `db:"assignment_count" json:"assignment_count"`
	UpcomingCount   int        `db:"upcoming_count" json:"upcoming_count"`
	UndatedCount    int        `db:"undated_count" json:"undated_count"`
	DiscardedCount  int        `db:"discarded_count" json:"discarded_count"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Terminal reports whether the run reached a final state.
func (r *SyncRun) Terminal() bool {
	return r.Status == RunStatusFinished || r.Status == RunStatusFailed
}

// SyncStats counts how the merged assignments partitioned during one
// run. Upcoming + Undated + Discarded always equals Assignments.
type SyncStats struct {
	Courses     int `json:"courses"`
	Assignments int `json:"assignments"`
	Upcoming    int `json:"upcoming"`
	Undated     int `json:"undated"`
	Discarded   int `json:"discarded"`
}
