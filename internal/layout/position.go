package layout

import (
	"strconv"
	"strings"
	"time"

	"truckplan/internal/model"
)

// MinWidthFactor is the fraction of one day column kept as the minimum block width.
const MinWidthFactor = 0.3

// Position is a horizontal placement as percentages of the grid width.
type Position struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Right is the right edge in percent.
func (p Position) Right() float64 {
	return p.Left + p.Width
}

// Item is anything that can be positioned. Untimed items cover whole days.
type Item struct {
	StartDate string
	EndDate   string
	StartTime string // HH:MM, optional
	EndTime   string // HH:MM, optional
	Timed     bool
}

// TruckloadItem positions a truckload using its time-of-day bounds.
func TruckloadItem(t model.Truckload) Item {
	return Item{StartDate: t.StartDate, EndDate: t.EndDate, StartTime: t.StartTime, EndTime: t.EndTime, Timed: true}
}

// EventItem positions a driver event over whole days.
func EventItem(e model.DriverEvent) Item {
	return Item{StartDate: e.StartDate, EndDate: e.EndDate}
}

// Grid indexes the visible days.
type Grid struct {
	days  []string
	index map[string]int
}

// NewGrid builds a grid over an ordered list of days.
func NewGrid(days []time.Time) Grid {
	g := Grid{days: make([]string, len(days)), index: make(map[string]int, len(days))}
	for i, d := range days {
		s := d.Format(model.DateLayout)
		g.days[i] = s
		g.index[s] = i
	}
	return g
}

// Len is the number of visible days.
func (g Grid) Len() int {
	return len(g.days)
}

// Days returns the visible days as YYYY-MM-DD strings.
func (g Grid) Days() []string {
	return g.days
}

// PositionOf places item on the grid. It reports false when the item does
// not intersect the visible days and should not be rendered.
func PositionOf(item Item, g Grid) (Position, bool) {
	n := len(g.days)
	if n == 0 {
		return Position{}, false
	}
	first, last := g.days[0], g.days[n-1]
	if item.EndDate < first || item.StartDate > last {
		return Position{}, false
	}

	startIdx, startInside := 0, false
	if idx, ok := g.index[item.StartDate]; ok {
		startIdx, startInside = idx, true
	}
	endIdx, endInside := n-1, false
	if idx, ok := g.index[item.EndDate]; ok {
		endIdx, endInside = idx, true
	}

	startFrac, endFrac := 0.0, 1.0
	if item.Timed {
		if startInside && item.StartTime != "" {
			if f, ok := DayFraction(item.StartTime); ok {
				startFrac = f
			}
		}
		if endInside && item.EndTime != "" {
			if f, ok := DayFraction(item.EndTime); ok {
				endFrac = f
			}
		}
	}

	total := float64(n)
	left := (float64(startIdx) + startFrac) / total * 100
	right := (float64(endIdx) + endFrac) / total * 100

	width := right - left
	if minWidth := 100 / total * MinWidthFactor; width < minWidth {
		width = minWidth
	}
	return Position{Left: left, Width: width}, true
}

// DayFraction converts HH:MM into a fraction of a day.
func DayFraction(hhmm string) (float64, bool) {
	parts := strings.Split(hhmm, ":")
	if len(parts) < 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return float64(hour)/24 + float64(minute)/1440, true
}
