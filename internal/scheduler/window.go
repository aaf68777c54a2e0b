package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow reports a planning window the scheduler cannot accept.
var ErrInvalidWindow = errors.New("invalid planning window")

// Window is the inclusive date range of a scheduling request.
type Window struct {
	Start time.Time
	End   time.Time
	Mode  CalendarMode
}

// CustomWindow covers every day between start and end inclusive.
func CustomWindow(start, end time.Time) (Window, error) {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow, end.Format(dateLayout), start.Format(dateLayout))
	}
	return Window{Start: start, End: end, Mode: CalendarAllDays}, nil
}

// SemesterWindow resolves the weekday-only semester containing year/month.
// Autumn runs Sep 1 - Dec 31, spring Feb 1 - Jun 30; July and August are rejected.
func SemesterWindow(year, month int) (Window, error) {
	switch {
	case month >= 9 && month <= 12:
		return Window{Start: civil(year, time.September, 1), End: civil(year, time.December, 31), Mode: CalendarWeekdays}, nil
	case month >= 1 && month <= 6:
		return Window{Start: civil(year, time.February, 1), End: civil(year, time.June, 30), Mode: CalendarWeekdays}, nil
	default:
		return Window{}, fmt.Errorf("%w: month %d is outside the semester ranges", ErrInvalidWindow, month)
	}
}

// StudyWindow resolves the study period containing date. Summer months map
// to Jun 1 - Aug 31; every calendar day is a candidate.
func StudyWindow(date time.Time) Window {
	year, month := date.Year(), date.Month()
	switch {
	case month >= time.September:
		return Window{Start: civil(year, time.September, 1), End: civil(year, time.December, 31), Mode: CalendarAllDays}
	case month <= time.June:
		return Window{Start: civil(year, time.February, 1), End: civil(year, time.June, 30), Mode: CalendarAllDays}
	default:
		return Window{Start: civil(year, time.June, 1), End: civil(year, time.August, 31), Mode: CalendarAllDays}
	}
}

const dateLayout = "2006-01-02"

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
