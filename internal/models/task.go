package models

import "time"

// Task is a unit of coursework owned by a student.
type Task struct {
	ID               int64      `db:"id" json:"id"`
	OwnerID          int64      `db:"owner_id" json:"ownerId"`
	Name             string     `db:"name" json:"name"`
	SubjectName      string     `db:"subject_name" json:"subjectName"`
	EstimatedMinutes *int       `db:"estimated_minutes" json:"estimatedMinutes,omitempty"`
	Deadline         *time.Time `db:"deadline" json:"deadline,omitempty"`
	Completed        bool       `db:"completed" json:"completed"`
}

// Plannable reports whether the task carries a usable effort estimate.
func (t Task) Plannable() bool {
	return t.EstimatedMinutes != nil && *t.EstimatedMinutes > 0
}
