// Package layout places schedule intervals on the planner grid: lane
// assignment for stacking and percentage geometry for positioning.
package layout

import "truckplan/internal/model"

// AssignLanes returns a lane index per item, parallel to items.
// Each item takes the lowest lane not used by an earlier item it overlaps.
// This is first-fit in input order, not a minimum-lane packing.
func AssignLanes(items []model.Interval) []int {
	lanes := make([]int, len(items))
	used := make(map[int]bool)

	for i, item := range items {
		clear(used)
		for j := 0; j < i; j++ {
			if items[j].Overlaps(item) {
				used[lanes[j]] = true
			}
		}
		lane := 0
		for used[lane] {
			lane++
		}
		lanes[i] = lane
	}
	return lanes
}

// LaneCount is the number of lanes needed to hold an assignment.
func LaneCount(lanes []int) int {
	n := 0
	for _, l := range lanes {
		if l+1 > n {
			n = l + 1
		}
	}
	return n
}

// Geometry holds the vertical sizes of a driver row, in pixels.
type Geometry struct {
	EventLaneHeight     int `json:"eventLaneHeight"`
	TruckloadLaneHeight int `json:"truckloadLaneHeight"`
	LaneGap             int `json:"laneGap"`
	RowPadding          int `json:"rowPadding"`
	MinRowHeight        int `json:"minRowHeight"`
}

// DefaultGeometry matches the planner stylesheet.
func DefaultGeometry() Geometry {
	return Geometry{
		EventLaneHeight:     20,
		TruckloadLaneHeight: 32,
		LaneGap:             2,
		RowPadding:          4,
		MinRowHeight:        48,
	}
}

// EventTop is the offset of an event lane from the top of its row.
func (g Geometry) EventTop(lane int) int {
	return g.RowPadding + lane*(g.EventLaneHeight+g.LaneGap)
}

// TruckloadTop is the offset of a truckload lane. Truckload lanes sit
// below all event lanes of the same row.
func (g Geometry) TruckloadTop(lane, eventLanes int) int {
	return g.RowPadding + eventLanes*(g.EventLaneHeight+g.LaneGap) + lane*(g.TruckloadLaneHeight+g.LaneGap)
}

// RowHeight reserves space for every lane of both item classes.
func (g Geometry) RowHeight(eventLanes, truckloadLanes int) int {
	h := 2*g.RowPadding +
		eventLanes*(g.EventLaneHeight+g.LaneGap) +
		truckloadLanes*(g.TruckloadLaneHeight+g.LaneGap)
	if h < g.MinRowHeight {
		return g.MinRowHeight
	}
	return h
}
