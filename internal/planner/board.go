package planner

import (
	"time"

	"truckplan/internal/calendar"
	"truckplan/internal/layout"
	"truckplan/internal/model"
	"truckplan/internal/ordering"
)

const (
	KindTruckload = "truckload"
	KindEvent     = "event"
)

// DayHeader is one column of the grid.
type DayHeader struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Weekend bool   `json:"weekend"`
	Today   bool   `json:"today"`
}

// Block is a positioned item inside a driver row.
type Block struct {
	ID          int64   `json:"id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label"` // truckload status or event type
	Description string  `json:"description,omitempty"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	StartTime   string  `json:"startTime,omitempty"`
	EndTime     string  `json:"endTime,omitempty"`
	Lane        int     `json:"lane"`
	Top         int     `json:"top"`
	Left        float64 `json:"left"`
	Width       float64 `json:"width"`
	ClipStart   bool    `json:"clipStart"`
	ClipEnd     bool    `json:"clipEnd"`
	Draggable   bool    `json:"draggable"`
}

// Row is one driver's lane stack: event lanes above truckload lanes.
type Row struct {
	Driver         model.Driver `json:"driver"`
	EventLanes     int          `json:"eventLanes"`
	TruckloadLanes int          `json:"truckloadLanes"`
	Height         int          `json:"height"`
	Events         []Block      `json:"events"`
	Truckloads     []Block      `json:"truckloads"`
}

// Board is the render model of one visible range.
type Board struct {
	View     ViewState               `json:"view"`
	Start    string                  `json:"start"`
	End      string                  `json:"end"`
	Days     []DayHeader             `json:"days"`
	Rows     []Row                   `json:"rows"`
	Geometry layout.Geometry         `json:"geometry"`
	Stale    bool                    `json:"stale"`
	Issues   []model.ValidationIssue `json:"issues,omitempty"`
}

// BoardInput is everything BuildBoard lays out.
type BoardInput struct {
	Data     *model.PlannerData
	Days     []time.Time
	Saved    []int64
	Hidden   []int64
	Today    time.Time
	Geometry layout.Geometry
}

// BuildBoard lays out data over days. Rows follow the saved order merged
// over the default order, hidden drivers are left out, and items that do
// not intersect the visible days are skipped. Lanes are assigned per
// driver and per item class in input order.
func BuildBoard(in BoardInput) *Board {
	grid := layout.NewGrid(in.Days)
	vr := calendar.VisibleRange(in.Days)
	b := &Board{
		Days:     dayHeaders(in.Days, in.Today),
		Rows:     []Row{},
		Geometry: in.Geometry,
	}
	if len(in.Days) > 0 {
		b.Start = vr.Start.Format(model.DateLayout)
		b.End = vr.End.Format(model.DateLayout)
	}

	data := in.Data
	if data == nil {
		data = &model.PlannerData{}
	}

	loads := make(map[int64][]model.Truckload)
	for _, t := range data.Truckloads {
		loads[t.DriverID] = append(loads[t.DriverID], t)
	}
	evs := make(map[int64][]model.DriverEvent)
	for _, e := range data.DriverEvents {
		evs[e.DriverID] = append(evs[e.DriverID], e)
	}

	drivers := ordering.FilterVisible(ordering.Arrange(data.Drivers, in.Saved), in.Hidden)
	for _, d := range drivers {
		b.Rows = append(b.Rows, buildRow(d, evs[d.ID], loads[d.ID], grid, b.Start, b.End, in.Geometry))
	}
	return b
}

func buildRow(d model.Driver, evs []model.DriverEvent, loads []model.Truckload, grid layout.Grid, start, end string, geo layout.Geometry) Row {
	row := Row{Driver: d, Events: []Block{}, Truckloads: []Block{}}

	var evIntervals []model.Interval
	for _, e := range evs {
		pos, ok := layout.PositionOf(layout.EventItem(e), grid)
		if !ok {
			continue
		}
		row.Events = append(row.Events, Block{
			ID:          e.ID,
			Kind:        KindEvent,
			Label:       string(e.EventType),
			Description: e.Description,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			Left:        pos.Left,
			Width:       pos.Width,
			ClipStart:   e.StartDate < start,
			ClipEnd:     e.EndDate > end,
		})
		evIntervals = append(evIntervals, e.Interval())
	}

	var loadIntervals []model.Interval
	for _, t := range loads {
		pos, ok := layout.PositionOf(layout.TruckloadItem(t), grid)
		if !ok {
			continue
		}
		row.Truckloads = append(row.Truckloads, Block{
			ID:          t.ID,
			Kind:        KindTruckload,
			Label:       string(t.Status),
			Description: t.Description,
			StartDate:   t.StartDate,
			EndDate:     t.EndDate,
			StartTime:   t.StartTime,
			EndTime:     t.EndTime,
			Left:        pos.Left,
			Width:       pos.Width,
			ClipStart:   t.StartDate < start,
			ClipEnd:     t.EndDate > end,
			Draggable:   t.IsDraft(),
		})
		loadIntervals = append(loadIntervals, t.Interval())
	}

	evLanes := layout.AssignLanes(evIntervals)
	loadLanes := layout.AssignLanes(loadIntervals)
	row.EventLanes = layout.LaneCount(evLanes)
	row.TruckloadLanes = layout.LaneCount(loadLanes)

	for i := range row.Events {
		row.Events[i].Lane = evLanes[i]
		row.Events[i].Top = geo.EventTop(evLanes[i])
	}
	for i := range row.Truckloads {
		row.Truckloads[i].Lane = loadLanes[i]
		row.Truckloads[i].Top = geo.TruckloadTop(loadLanes[i], row.EventLanes)
	}
	row.Height = geo.RowHeight(row.EventLanes, row.TruckloadLanes)
	return row
}

func dayHeaders(days []time.Time, today time.Time) []DayHeader {
	todayStr := ""
	if !today.IsZero() {
		todayStr = calendar.Day(today).Format(model.DateLayout)
	}
	out := make([]DayHeader, len(days))
	for i, d := range days {
		date := d.Format(model.DateLayout)
		wd := d.Weekday()
		out[i] = DayHeader{
			Date:    date,
			Weekday: wd.String()[:3],
			Weekend: wd == time.Saturday || wd == time.Sunday,
			Today:   date == todayStr,
		}
	}
	return out
}

// Lookup finds a block by kind and ID.
func (b *Board) Lookup(kind string, id int64) (Row, Block, bool) {
	for _, r := range b.Rows {
		blocks := r.Truckloads
		if kind == KindEvent {
			blocks = r.Events
		}
		for _, blk := range blocks {
			if blk.ID == id {
				return r, blk, true
			}
		}
	}
	return Row{}, Block{}, false
}
