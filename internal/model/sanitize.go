package model

import (
	"fmt"
	"time"
)

// ValidationIssue describes a record dropped or repaired during ingestion.
type ValidationIssue struct {
	Kind   string `json:"kind"` // driver, truckload, driver_event
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s %d: %s", v.Kind, v.ID, v.Reason)
}

// Sanitize drops records the layout engine cannot place correctly and
// clears malformed time-of-day values. The input is not modified.
func Sanitize(data *PlannerData) (*PlannerData, []ValidationIssue) {
	if data == nil {
		return &PlannerData{}, nil
	}

	var issues []ValidationIssue
	out := &PlannerData{
		Drivers:      make([]Driver, 0, len(data.Drivers)),
		Truckloads:   make([]Truckload, 0, len(data.Truckloads)),
		DriverEvents: make([]DriverEvent, 0, len(data.DriverEvents)),
	}

	seen := make(map[int64]bool, len(data.Drivers))
	for _, d := range data.Drivers {
		if d.ID <= 0 || seen[d.ID] {
			issues = append(issues, ValidationIssue{Kind: "driver", ID: d.ID, Reason: "invalid or duplicate id"})
			continue
		}
		seen[d.ID] = true
		out.Drivers = append(out.Drivers, d)
	}

	for _, t := range data.Truckloads {
		if reason := checkInterval(t.DriverID, t.StartDate, t.EndDate); reason != "" {
			issues = append(issues, ValidationIssue{Kind: "truckload", ID: t.ID, Reason: reason})
			continue
		}
		if t.StartTime != "" && !ValidTime(t.StartTime) {
			issues = append(issues, ValidationIssue{Kind: "truckload", ID: t.ID, Reason: "invalid start time cleared"})
			t.StartTime = ""
		}
		if t.EndTime != "" && !ValidTime(t.EndTime) {
			issues = append(issues, ValidationIssue{Kind: "truckload", ID: t.ID, Reason: "invalid end time cleared"})
			t.EndTime = ""
		}
		out.Truckloads = append(out.Truckloads, t)
	}

	for _, e := range data.DriverEvents {
		if reason := checkInterval(e.DriverID, e.StartDate, e.EndDate); reason != "" {
			issues = append(issues, ValidationIssue{Kind: "driver_event", ID: e.ID, Reason: reason})
			continue
		}
		out.DriverEvents = append(out.DriverEvents, e)
	}

	return out, issues
}

func checkInterval(driverID int64, start, end string) string {
	if driverID <= 0 {
		return "missing driver"
	}
	if !ValidDate(start) {
		return fmt.Sprintf("invalid start date %q", start)
	}
	if !ValidDate(end) {
		return fmt.Sprintf("invalid end date %q", end)
	}
	if end < start {
		return "end date before start date"
	}
	return ""
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidTime reports whether s is a 24-hour HH:MM value.
func ValidTime(s string) bool {
	if len(s) != len(TimeLayout) {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}
