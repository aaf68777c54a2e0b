package dto

import "time"

// PlanOptions tunes a single planning request. Zero values fall back to the
// service configuration.
type PlanOptions struct {
	Strategy         string `json:"strategy" validate:"omitempty,oneof=search greedy"`
	Seed             *int64 `json:"seed,omitempty"`
	TimeLimitSeconds int    `json:"timeLimitSeconds" validate:"omitempty,min=1,max=3600"`
	Runs             int    `json:"runs" validate:"omitempty,min=1,max=32"`
	DailyMinutes     int    `json:"dailyMinutes" validate:"omitempty,min=30,max=300"`
	IncludeCompleted bool   `json:"includeCompleted"`
	SkipCache        bool   `json:"skipCache"`
}

// StudyPlanRequest plans an owner's tasks over an explicit date range.
type StudyPlanRequest struct {
	OwnerID   int64       `json:"ownerId" validate:"required,min=1"`
	StartDate string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string      `json:"endDate" validate:"required,datetime=2006-01-02"`
	Options   PlanOptions `json:"options"`
}

// StudyPlanForDateRequest plans the study period that contains Date.
type StudyPlanForDateRequest struct {
	OwnerID int64       `json:"ownerId" validate:"required,min=1"`
	Date    string      `json:"date" validate:"required,datetime=2006-01-02"`
	Options PlanOptions `json:"options"`
}

// SemesterPlanRequest plans the weekday-only semester containing Year/Month.
type SemesterPlanRequest struct {
	OwnerID int64       `json:"ownerId" validate:"required,min=1"`
	Year    int         `json:"year" validate:"required,min=2000,max=2100"`
	Month   int         `json:"month" validate:"required,min=1,max=12"`
	Options PlanOptions `json:"options"`
}

// PlannedTask is one task's share of a planned day.
type PlannedTask struct {
	TaskID           int64   `json:"taskId"`
	TaskName         string  `json:"taskName"`
	SubjectName      string  `json:"subjectName"`
	MinutesToday     int     `json:"minutesToday"`
	MinutesRemaining int     `json:"minutesRemaining"`
	Deadline         *string `json:"deadline,omitempty"`
	Part             int     `json:"part,omitempty"`
	Parts            int     `json:"parts,omitempty"`
}

// PlannedDay lists the work planned on one date.
type PlannedDay struct {
	Date         string        `json:"date"`
	TotalMinutes int           `json:"totalMinutes"`
	Tasks        []PlannedTask `json:"tasks"`
}

// PlanWarning flags a task whose deadline is at risk.
type PlanWarning struct {
	TaskID                  int64  `json:"taskId"`
	TaskName                string `json:"taskName"`
	Kind                    string `json:"kind"`
	Message                 string `json:"message"`
	RecommendedDailyMinutes int    `json:"recommendedDailyMinutes,omitempty"`
}

// PlanScore is the constraint score of a searched plan.
type PlanScore struct {
	Hard     int64 `json:"hard"`
	Medium   int64 `json:"medium"`
	Soft     int64 `json:"soft"`
	Feasible bool  `json:"feasible"`
}

// PlanStats summarises the search that produced a plan.
type PlanStats struct {
	Moves         int64  `json:"moves"`
	Improvements  int64  `json:"improvements"`
	Perturbations int64  `json:"perturbations"`
	ElapsedMs     int64  `json:"elapsedMs"`
	Termination   string `json:"termination"`
	Seed          int64  `json:"seed"`
}

// SchedulePlan is the day-by-day plan returned to callers.
type SchedulePlan struct {
	ID                   string        `json:"id"`
	OwnerID              int64         `json:"ownerId"`
	StartDate            string        `json:"startDate"`
	EndDate              string        `json:"endDate"`
	Strategy             string        `json:"strategy"`
	PlannedDays          []PlannedDay  `json:"plannedDays"`
	Warnings             []PlanWarning `json:"warnings"`
	TotalTasksConsidered int           `json:"totalTasksConsidered"`
	PlannedTaskCount     int           `json:"plannedTaskCount"`
	Message              string        `json:"message"`
	Score                *PlanScore    `json:"score,omitempty"`
	Stats                *PlanStats    `json:"stats,omitempty"`
	GeneratedAt          time.Time     `json:"generatedAt"`
}
