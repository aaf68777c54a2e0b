package scheduler

import "time"

const (
	DefaultSoftCapacity = 180
	DefaultHardCapacity = 300
	// MaxHardCapacity is the absolute daily ceiling regardless of configuration.
	MaxHardCapacity = 300
)

// CalendarMode selects which dates of a window become candidate days.
type CalendarMode string

const (
	CalendarAllDays  CalendarMode = "all_days"
	CalendarWeekdays CalendarMode = "weekdays"
)

// Capacity is the per-day workload budget in minutes.
type Capacity struct {
	SoftMinutes int
	HardMinutes int
}

func (c Capacity) normalized() Capacity {
	if c.SoftMinutes <= 0 {
		c.SoftMinutes = DefaultSoftCapacity
	}
	if c.HardMinutes <= 0 || c.HardMinutes > MaxHardCapacity {
		c.HardMinutes = DefaultHardCapacity
	}
	return c
}

// Day is one candidate date of the planning horizon.
type Day struct {
	Index               int
	Date                time.Time
	SoftCapacityMinutes int
	HardCapacityMinutes int
}

// NewCalendar enumerates the days of the window in ascending order.
func NewCalendar(w Window, capacity Capacity) []Day {
	capacity = capacity.normalized()
	start, end := DateOf(w.Start), DateOf(w.End)
	var days []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if w.Mode == CalendarWeekdays && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
			continue
		}
		days = append(days, Day{
			Index:               len(days),
			Date:                d,
			SoftCapacityMinutes: capacity.SoftMinutes,
			HardCapacityMinutes: capacity.HardMinutes,
		})
	}
	return days
}

// DateOf strips the clock from t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
