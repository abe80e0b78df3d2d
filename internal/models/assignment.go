package models

import "time"

// Assignment is a coursework item as the LMS returns it, tagged with the
// owning course name during aggregation. It only lives for the duration
// of one sync run.
type Assignment struct {
	Course string  `json:"course_name"`
	Name   string  `json:"name"`
	DueAt  *string `json:"due_at"`
}

// ScheduledAssignment is an upcoming assignment resolved into the
// caller's local zone with its remaining time against the run's capture
// instant.
type ScheduledAssignment struct {
	Course    string    `json:"course"`
	Name      string    `json:"assignment"`
	DueAt     time.Time `json:"due_at"`
	DueLabel  string    `json:"due_label"`
	DaysLeft  int       `json:"days_left"`
	HoursLeft int       `json:"hours_left"`
}

// UndatedAssignment is an assignment without a usable due date.
type UndatedAssignment struct {
	Course string `json:"course"`
	Name   string `json:"assignment"`
}
