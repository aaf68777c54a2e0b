package scheduler

import (
	"sort"
)

const (
	DefaultGreedyDailyMinutes  = 180
	DefaultGreedyUrgentMinutes = 360
	urgentWindowDays           = 3
)

// GreedyOptions tunes the day-filling strategy.
type GreedyOptions struct {
	// DailyMinutes is the normal budget of one day.
	DailyMinutes int
	// UrgentMinutes is the raised budget of a day within three days of a
	// task deadline.
	UrgentMinutes int
}

func (o GreedyOptions) normalized() GreedyOptions {
	if o.DailyMinutes <= 0 {
		o.DailyMinutes = DefaultGreedyDailyMinutes
	}
	if o.UrgentMinutes < o.DailyMinutes {
		o.UrgentMinutes = maxInt(DefaultGreedyUrgentMinutes, o.DailyMinutes)
	}
	return o
}

// PlanGreedy fills the days of the model in order, handing each day's budget
// to the most urgent unfinished tasks. Chunk boundaries are ignored: a task
// receives whatever minutes remain in the day.
func PlanGreedy(m *Model, opts GreedyOptions) Plan {
	opts = opts.normalized()
	plan := Plan{
		Window:               m.Window,
		Strategy:             StrategyGreedy,
		TotalTasksConsidered: len(m.Chains),
	}

	order := greedyOrder(m)
	remaining := make([]int, len(m.Chains))
	lastDay := make([]int, len(m.Chains))
	for i := range m.Chains {
		remaining[i] = m.Chains[i].TotalMinutes
		lastDay[i] = Unassigned
	}

	for _, day := range m.Days {
		used := 0
		var tasks []PlannedTask
		for _, id := range order {
			chain := &m.Chains[id]
			if remaining[id] == 0 {
				continue
			}
			budget := opts.DailyMinutes
			if chain.HasDeadline() {
				if until := DaysBetween(day.Date, *chain.Deadline); until >= 0 && until <= urgentWindowDays {
					budget = opts.UrgentMinutes
				}
			}
			take := minInt(budget-used, remaining[id])
			if take <= 0 {
				continue
			}
			used += take
			remaining[id] -= take
			lastDay[id] = day.Index
			tasks = append(tasks, PlannedTask{
				TaskID:           chain.TaskID,
				TaskName:         chain.Name,
				SubjectName:      chain.SubjectName,
				MinutesToday:     take,
				MinutesRemaining: remaining[id],
				Deadline:         chain.Deadline,
			})
		}
		if len(tasks) > 0 {
			plan.Days = append(plan.Days, PlannedDay{Date: day.Date, TotalMinutes: used, Tasks: tasks})
		}
	}

	for _, id := range order {
		chain := &m.Chains[id]
		planned := remaining[id] == 0
		if planned {
			plan.PlannedTaskCount++
		}
		if w, ok := chainWarning(m, chain, lastDay[id], planned); ok {
			plan.Warnings = append(plan.Warnings, w)
		}
	}
	plan.Message = planMessage(plan.TotalTasksConsidered, plan.PlannedTaskCount)
	return plan
}

// greedyOrder sorts chains by deadline (none last), task id, then minutes.
func greedyOrder(m *Model) []ChainID {
	order := make([]ChainID, len(m.Chains))
	for i := range order {
		order[i] = ChainID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &m.Chains[order[i]], &m.Chains[order[j]]
		if before, decided := compareDeadlines(a.Deadline, b.Deadline); decided {
			return before
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.TotalMinutes < b.TotalMinutes
	})
	return order
}
