// Package planner composes the layout engine into the planner board: view
// state, range caching, board layout and the per-profile drag controllers.
package planner

import (
	"fmt"
	"time"

	"truckplan/internal/calendar"
	"truckplan/internal/model"
)

// ViewState is the serializable calendar state of one planner screen.
type ViewState struct {
	Mode        calendar.ViewMode `json:"mode"`
	Anchor      string            `json:"anchor"`
	CustomStart string            `json:"customStart,omitempty"`
	CustomEnd   string            `json:"customEnd,omitempty"`
}

// NewViewState starts at today's week in the given mode.
func NewViewState(mode calendar.ViewMode, today time.Time) ViewState {
	s := ViewState{Mode: mode, Anchor: calendar.Day(today).Format(model.DateLayout)}
	if mode == calendar.ViewCustom {
		s.CustomStart = s.Anchor
		s.CustomEnd = calendar.Day(today).AddDate(0, 0, calendar.ViewWeek.Days()-1).Format(model.DateLayout)
	}
	return s
}

// Selection converts the state into calendar inputs. Unparseable dates
// fall back to today.
func (s ViewState) Selection(today time.Time) calendar.Selection {
	day := func(v string) time.Time {
		if d, err := calendar.ParseDay(v); err == nil {
			return d
		}
		return calendar.Day(today)
	}
	mode := s.Mode
	if mode == "" {
		mode = calendar.ViewWeek
	}
	return calendar.Selection{
		Mode:        mode,
		Anchor:      day(s.Anchor),
		CustomStart: day(s.CustomStart),
		CustomEnd:   day(s.CustomEnd),
	}
}

// Days builds the visible days.
func (s ViewState) Days(today time.Time) []time.Time {
	return s.Selection(today).Build()
}

// Validate rejects states that cannot be laid out.
func (s ViewState) Validate() error {
	if _, err := calendar.ParseViewMode(string(s.Mode)); err != nil {
		return err
	}
	if s.Anchor != "" && !model.ValidDate(s.Anchor) {
		return fmt.Errorf("invalid anchor %q", s.Anchor)
	}
	if s.Mode == calendar.ViewCustom {
		if !model.ValidDate(s.CustomStart) || !model.ValidDate(s.CustomEnd) {
			return fmt.Errorf("custom view needs start and end dates")
		}
	}
	return nil
}

func fromSelection(sel calendar.Selection) ViewState {
	s := ViewState{Mode: sel.Mode, Anchor: sel.Anchor.Format(model.DateLayout)}
	if sel.Mode == calendar.ViewCustom {
		s.CustomStart = sel.CustomStart.Format(model.DateLayout)
		s.CustomEnd = sel.CustomEnd.Format(model.DateLayout)
	}
	return s
}

// ActionKind names a view state change.
type ActionKind string

const (
	ActionSetMode        ActionKind = "setMode"
	ActionSetAnchor      ActionKind = "setAnchor"
	ActionSetCustomRange ActionKind = "setCustomRange"
	ActionNavigate       ActionKind = "navigate"
)

// Action is one input to Reduce. Only the fields of its kind are read.
type Action struct {
	Kind      ActionKind         `json:"kind"`
	Mode      calendar.ViewMode  `json:"mode,omitempty"`
	Date      time.Time          `json:"date"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Direction calendar.Direction `json:"direction,omitempty"`
}

// Reduce applies an action and returns the next state. Unknown actions
// return the state unchanged.
func Reduce(s ViewState, a Action, today time.Time) ViewState {
	sel := s.Selection(today)

	switch a.Kind {
	case ActionSetMode:
		if a.Mode == calendar.ViewCustom && sel.Mode != calendar.ViewCustom {
			days := sel.Build()
			sel.CustomStart = days[0]
			sel.CustomEnd = days[len(days)-1]
			sel.Anchor = sel.CustomStart
		}
		sel.Mode = a.Mode
	case ActionSetAnchor:
		sel.Anchor = calendar.Day(a.Date)
	case ActionSetCustomRange:
		sel.Mode = calendar.ViewCustom
		sel.CustomStart = calendar.Day(a.Start)
		sel.CustomEnd = calendar.Day(a.End)
		sel.Anchor = sel.CustomStart
	case ActionNavigate:
		sel = calendar.Navigate(sel, a.Direction, today)
	default:
		return s
	}
	return fromSelection(sel)
}
