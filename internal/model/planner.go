package model

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for time-of-day values.
const TimeLayout = "15:04"

type TruckloadStatus string

const (
	TruckloadDraft     TruckloadStatus = "draft"
	TruckloadActive    TruckloadStatus = "active"
	TruckloadCompleted TruckloadStatus = "completed"
)

type EventType string

const (
	EventVacation    EventType = "vacation"
	EventSick        EventType = "sick"
	EventUnavailable EventType = "unavailable"
	EventOther       EventType = "other"
)

// Driver is a row on the planner grid.
type Driver struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Color    string `json:"color"`
}

// Interval is a closed date range in YYYY-MM-DD form.
type Interval struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Overlaps reports whether two closed intervals share at least one day.
// Lexicographic comparison is enough for YYYY-MM-DD strings.
func (i Interval) Overlaps(o Interval) bool {
	return o.StartDate <= i.EndDate && o.EndDate >= i.StartDate
}

type Truckload struct {
	ID          int64           `json:"id"`
	DriverID    int64           `json:"driverId"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	StartTime   string          `json:"startTime,omitempty"`
	EndTime     string          `json:"endTime,omitempty"`
	Status      TruckloadStatus `json:"status"`
	Description string          `json:"description"`
}

func (t Truckload) Interval() Interval {
	return Interval{StartDate: t.StartDate, EndDate: t.EndDate}
}

// IsDraft reports whether the truckload can be reassigned by dragging.
func (t Truckload) IsDraft() bool {
	return t.Status == TruckloadDraft
}

type DriverEvent struct {
	ID          int64     `json:"id"`
	DriverID    int64     `json:"driverId"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	EventType   EventType `json:"eventType"`
	Description string    `json:"description"`
}

func (e DriverEvent) Interval() Interval {
	return Interval{StartDate: e.StartDate, EndDate: e.EndDate}
}

// PlannerData is everything the planner needs for one visible range.
type PlannerData struct {
	Drivers      []Driver      `json:"drivers"`
	Truckloads   []Truckload   `json:"truckloads"`
	DriverEvents []DriverEvent `json:"driverEvents"`
}

// VisibleRange is the first and last day shown on the grid.
type VisibleRange struct {
	Start time.Time
	End   time.Time
}

// Key identifies the range for caching and fetching.
func (r VisibleRange) Key() string {
	return r.Start.Format(DateLayout) + ":" + r.End.Format(DateLayout)
}

// Contains reports whether the date string lies inside the range.
func (r VisibleRange) Contains(date string) bool {
	return date >= r.Start.Format(DateLayout) && date <= r.End.Format(DateLayout)
}
