// Package calendar builds the day sequences shown on the planner grid.
package calendar

import (
	"fmt"
	"time"

	"truckplan/internal/model"
)

// ViewMode is the selected calendar granularity.
type ViewMode string

const (
	ViewWeek     ViewMode = "week"
	ViewTwoWeeks ViewMode = "2week"
	ViewMonth    ViewMode = "month"
	ViewCustom   ViewMode = "custom"
)

// Days returns the fixed width of the mode, or 0 for custom ranges.
func (m ViewMode) Days() int {
	switch m {
	case ViewWeek:
		return 7
	case ViewTwoWeeks:
		return 14
	case ViewMonth:
		return 28
	default:
		return 0
	}
}

// ParseViewMode accepts the wire names used by the planner UI.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewWeek, ViewTwoWeeks, ViewMonth, ViewCustom:
		return ViewMode(s), nil
	case "":
		return ViewWeek, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Direction moves the visible window.
type Direction string

const (
	DirPrev  Direction = "prev"
	DirNext  Direction = "next"
	DirToday Direction = "today"
)

// Selection is everything the range depends on.
type Selection struct {
	Mode        ViewMode  `json:"mode"`
	Anchor      time.Time `json:"anchor"`
	CustomStart time.Time `json:"customStart"`
	CustomEnd   time.Time `json:"customEnd"`
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC date.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, s, time.UTC)
}

// StartOfWeek returns the Sunday on or before t.
func StartOfWeek(t time.Time) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DaysBetween returns the signed number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours() / 24)
}

// BuildRange produces the ordered days to display for a view.
// For custom ranges an end before the start yields just the start day.
func BuildRange(anchor time.Time, mode ViewMode, customStart, customEnd time.Time) []time.Time {
	var first time.Time
	var count int

	if mode == ViewCustom {
		first = Day(customStart)
		count = max(0, DaysBetween(customStart, customEnd)) + 1
	} else {
		first = StartOfWeek(anchor)
		count = mode.Days()
		if count == 0 {
			count = ViewWeek.Days()
		}
	}

	days := make([]time.Time, count)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return days
}

// Build is BuildRange over a Selection.
func (s Selection) Build() []time.Time {
	return BuildRange(s.Anchor, s.Mode, s.CustomStart, s.CustomEnd)
}

// Width returns how many days a single navigation step moves.
func (s Selection) Width() int {
	if s.Mode == ViewCustom {
		return max(0, DaysBetween(s.CustomStart, s.CustomEnd)) + 1
	}
	if n := s.Mode.Days(); n > 0 {
		return n
	}
	return ViewWeek.Days()
}

// Navigate shifts the selection one view width, or back to today.
// Custom ranges keep their length.
func Navigate(s Selection, dir Direction, today time.Time) Selection {
	width := s.Width()
	out := s

	switch dir {
	case DirPrev, DirNext:
		step := width
		if dir == DirPrev {
			step = -width
		}
		out.Anchor = Day(s.Anchor).AddDate(0, 0, step)
		if s.Mode == ViewCustom {
			out.CustomStart = Day(s.CustomStart).AddDate(0, 0, step)
			out.CustomEnd = out.CustomStart.AddDate(0, 0, width-1)
			out.Anchor = out.CustomStart
		}
	case DirToday:
		out.Anchor = Day(today)
		if s.Mode == ViewCustom {
			out.CustomStart = Day(today)
			out.CustomEnd = out.CustomStart.AddDate(0, 0, width-1)
		}
	}
	return out
}

// VisibleRange returns the first and last day of a built range.
func VisibleRange(days []time.Time) model.VisibleRange {
	if len(days) == 0 {
		return model.VisibleRange{}
	}
	return model.VisibleRange{Start: days[0], End: days[len(days)-1]}
}

// Format renders days as YYYY-MM-DD strings.
func Format(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(model.DateLayout)
	}
	return out
}
