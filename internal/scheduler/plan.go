package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// Strategy selects how a plan is produced.
type Strategy string

const (
	StrategySearch Strategy = "search"
	StrategyGreedy Strategy = "greedy"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategySearch || s == StrategyGreedy
}

// WarningKind classifies a plan warning.
type WarningKind string

const (
	WarningInsufficientTime       WarningKind = "insufficient_time"
	WarningDeadlinePassed         WarningKind = "deadline_passed"
	WarningScheduledAfterDeadline WarningKind = "scheduled_after_deadline"
	WarningNotFullyScheduled      WarningKind = "not_fully_scheduled"
)

// Plan is the day-ordered report of a finished scheduling run.
type Plan struct {
	Window               Window
	Strategy             Strategy
	Days                 []PlannedDay
	Warnings             []Warning
	TotalTasksConsidered int
	PlannedTaskCount     int
	Message              string
	Score                Score
	Stats                Stats
	// Seed is the seed of the winning search run.
	Seed int64
}

// PlannedDay lists the work planned on one date.
type PlannedDay struct {
	Date         time.Time
	TotalMinutes int
	Tasks        []PlannedTask
}

// PlannedTask is one chain's share of a day.
type PlannedTask struct {
	TaskID           int64
	TaskName         string
	SubjectName      string
	MinutesToday     int
	MinutesRemaining int
	Deadline         *time.Time
	PartNumber       int
	PartCount        int
}

// Warning flags a task whose deadline is at risk.
type Warning struct {
	TaskID                  int64
	TaskName                string
	Kind                    WarningKind
	Message                 string
	RecommendedDailyMinutes int
}

// BuildPlan renders an assignment into a plan. The assignment is only read.
func BuildPlan(m *Model, a Assignment) Plan {
	plan := Plan{
		Window:               m.Window,
		Strategy:             StrategySearch,
		TotalTasksConsidered: len(m.Chains),
	}

	byDay := make(map[int][]PlannedTask)
	for i := range m.Chains {
		chain := &m.Chains[i]
		done := 0
		for _, p := range chain.Parts {
			part := m.Parts[p]
			done += part.DurationMinutes
			day, ok := a.Day(p)
			if !ok {
				continue
			}
			byDay[day] = append(byDay[day], PlannedTask{
				TaskID:           chain.TaskID,
				TaskName:         chain.Name,
				SubjectName:      chain.SubjectName,
				MinutesToday:     part.DurationMinutes,
				MinutesRemaining: chain.TotalMinutes - done,
				Deadline:         chain.Deadline,
				PartNumber:       part.Index + 1,
				PartCount:        len(chain.Parts),
			})
		}

		lastDay, planned := chainSpan(chain, a)
		if planned {
			plan.PlannedTaskCount++
		}
		if w, ok := chainWarning(m, chain, lastDay, planned); ok {
			plan.Warnings = append(plan.Warnings, w)
		}
	}

	days := make([]int, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Ints(days)
	for _, day := range days {
		tasks := byDay[day]
		sortPlannedTasks(tasks)
		total := 0
		for _, t := range tasks {
			total += t.MinutesToday
		}
		plan.Days = append(plan.Days, PlannedDay{Date: m.Days[day].Date, TotalMinutes: total, Tasks: tasks})
	}

	plan.Message = planMessage(plan.TotalTasksConsidered, plan.PlannedTaskCount)
	return plan
}

// chainSpan returns the latest day used by a chain and whether every part
// of it is assigned.
func chainSpan(chain *TaskChain, a Assignment) (int, bool) {
	last, planned := Unassigned, true
	for _, p := range chain.Parts {
		day, ok := a.Day(p)
		if !ok {
			planned = false
			continue
		}
		if day > last {
			last = day
		}
	}
	return last, planned
}

// chainWarning yields at most one warning per chain. The capacity pre-check
// comes first since it holds whatever the search produced.
func chainWarning(m *Model, chain *TaskChain, lastDay int, planned bool) (Warning, bool) {
	w := Warning{TaskID: chain.TaskID, TaskName: chain.Name}
	if chain.HasDeadline() {
		hardCap := MaxHardCapacity
		if len(m.Days) > 0 {
			hardCap = m.Days[0].HardCapacityMinutes
		}
		daysUntil := DaysBetween(m.Window.Start, *chain.Deadline)
		// A deadline on the first day still leaves that day for work.
		available := maxInt(daysUntil, 1)
		switch {
		case daysUntil < 0:
			w.Kind = WarningDeadlinePassed
			w.RecommendedDailyMinutes = chain.TotalMinutes
			w.Message = fmt.Sprintf("deadline %s is before the planning start; %d minutes remain", chain.Deadline.Format(dateLayout), chain.TotalMinutes)
			return w, true
		case chain.TotalMinutes > hardCap*available:
			w.Kind = WarningInsufficientTime
			w.RecommendedDailyMinutes = ceilDiv(chain.TotalMinutes, available)
			w.Message = fmt.Sprintf("needs at least %d minutes per day to finish by %s", w.RecommendedDailyMinutes, chain.Deadline.Format(dateLayout))
			return w, true
		case lastDay != Unassigned && m.ordinals[lastDay] > chain.deadlineOrdinal:
			w.Kind = WarningScheduledAfterDeadline
			w.RecommendedDailyMinutes = ceilDiv(chain.TotalMinutes, available)
			w.Message = fmt.Sprintf("planned through %s, after its deadline %s", m.Days[lastDay].Date.Format(dateLayout), chain.Deadline.Format(dateLayout))
			return w, true
		}
	}
	if !planned {
		w.Kind = WarningNotFullyScheduled
		w.Message = "not every part could be placed in the planning window"
		return w, true
	}
	return Warning{}, false
}

func sortPlannedTasks(tasks []PlannedTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if before, decided := compareDeadlines(a.Deadline, b.Deadline); decided {
			return before
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.PartNumber < b.PartNumber
	})
}

func planMessage(total, planned int) string {
	switch {
	case total == 0:
		return "no tasks to plan in this period"
	case planned == total:
		return fmt.Sprintf("optimal plan created for all %d tasks", total)
	default:
		return fmt.Sprintf("partial plan created for %d of %d tasks", planned, total)
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
