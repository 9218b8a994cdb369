package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckplan/internal/calendar"
	"truckplan/internal/layout"
	"truckplan/internal/model"
)

func weekOf(y int, m time.Month, d int) []time.Time {
	return calendar.BuildRange(time.Date(y, m, d, 0, 0, 0, 0, time.UTC), calendar.ViewWeek, time.Time{}, time.Time{})
}

func sampleData() *model.PlannerData {
	return &model.PlannerData{
		Drivers: []model.Driver{
			{ID: 1, FullName: "Zoe"},
			{ID: 2, FullName: "Adam"},
			{ID: 3, FullName: "Mia"},
		},
		Truckloads: []model.Truckload{
			{ID: 10, DriverID: 1, StartDate: "2023-12-31", EndDate: "2024-01-03", Status: model.TruckloadDraft},
			{ID: 11, DriverID: 1, StartDate: "2024-01-02", EndDate: "2024-01-04", StartTime: "12:00", Status: model.TruckloadActive},
			{ID: 12, DriverID: 1, StartDate: "2024-01-05", EndDate: "2024-01-06", Status: model.TruckloadCompleted},
			{ID: 13, DriverID: 2, StartDate: "2024-02-01", EndDate: "2024-02-02"},
		},
		DriverEvents: []model.DriverEvent{
			{ID: 20, DriverID: 1, StartDate: "2024-01-01", EndDate: "2024-01-01", EventType: model.EventSick},
			{ID: 21, DriverID: 1, StartDate: "2024-01-01", EndDate: "2024-01-02", EventType: model.EventVacation},
		},
	}
}

func TestBuildBoard_RowsAndLanes(t *testing.T) {
	days := weekOf(2024, 1, 3) // 2023-12-31 .. 2024-01-06
	geo := layout.DefaultGeometry()

	b := BuildBoard(BoardInput{Data: sampleData(), Days: days, Today: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), Geometry: geo})

	assert.Equal(t, "2023-12-31", b.Start)
	assert.Equal(t, "2024-01-06", b.End)
	require.Len(t, b.Rows, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{b.Rows[0].Driver.ID, b.Rows[1].Driver.ID, b.Rows[2].Driver.ID}, "alphabetical by default")

	zoe := b.Rows[2]
	require.Len(t, zoe.Truckloads, 3)
	assert.Equal(t, []int{0, 1, 0}, []int{zoe.Truckloads[0].Lane, zoe.Truckloads[1].Lane, zoe.Truckloads[2].Lane})
	assert.Equal(t, 2, zoe.TruckloadLanes)
	assert.Equal(t, 2, zoe.EventLanes)
	assert.Equal(t, geo.RowHeight(2, 2), zoe.Height)

	// truckload lanes sit below the event lanes
	assert.Equal(t, geo.TruckloadTop(0, 2), zoe.Truckloads[0].Top)
	assert.Greater(t, zoe.Truckloads[0].Top, zoe.Events[1].Top)

	assert.True(t, zoe.Truckloads[0].Draggable)
	assert.False(t, zoe.Truckloads[1].Draggable)
	assert.False(t, zoe.Truckloads[2].Draggable)

	adam := b.Rows[0]
	assert.Empty(t, adam.Truckloads, "out of range loads are skipped")
	assert.Equal(t, geo.MinRowHeight, adam.Height)

	assert.True(t, b.Days[0].Weekend)
	assert.Equal(t, "Sun", b.Days[0].Weekday)
	assert.True(t, b.Days[2].Today)
	assert.False(t, b.Days[3].Today)
}

func TestBuildBoard_SavedOrderAndHidden(t *testing.T) {
	b := BuildBoard(BoardInput{
		Data:     sampleData(),
		Days:     weekOf(2024, 1, 3),
		Saved:    []int64{3, 1},
		Hidden:   []int64{1},
		Geometry: layout.DefaultGeometry(),
	})
	require.Len(t, b.Rows, 2)
	assert.Equal(t, int64(3), b.Rows[0].Driver.ID)
	assert.Equal(t, int64(2), b.Rows[1].Driver.ID)
}

func TestBuildBoard_ClippingAndLookup(t *testing.T) {
	b := BuildBoard(BoardInput{Data: sampleData(), Days: weekOf(2024, 1, 3), Geometry: layout.DefaultGeometry()})

	row, blk, ok := b.Lookup(KindTruckload, 11)
	require.True(t, ok)
	assert.Equal(t, int64(1), row.Driver.ID)
	assert.False(t, blk.ClipStart)
	// 2024-01-02 is index 2, noon adds half a day
	assert.InDelta(t, 2.5/7*100, blk.Left, 1e-9)

	_, first, ok := b.Lookup(KindTruckload, 10)
	require.True(t, ok)
	assert.False(t, first.ClipStart, "starts on the first visible day")
	assert.Equal(t, 0.0, first.Left)

	_, _, ok = b.Lookup(KindEvent, 21)
	assert.True(t, ok)
	_, _, ok = b.Lookup(KindTruckload, 13)
	assert.False(t, ok)
}

func TestBuildBoard_Empty(t *testing.T) {
	b := BuildBoard(BoardInput{Days: weekOf(2024, 1, 3)})
	assert.NotNil(t, b.Rows)
	assert.Empty(t, b.Rows)
	assert.Len(t, b.Days, 7)
}
