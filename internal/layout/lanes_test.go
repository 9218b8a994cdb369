package layout

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckplan/internal/model"
)

func iv(start, end string) model.Interval {
	return model.Interval{StartDate: start, EndDate: end}
}

func TestAssignLanes(t *testing.T) {
	tests := []struct {
		name  string
		items []model.Interval
		want  []int
	}{
		{"empty", nil, []int{}},
		{"single", []model.Interval{iv("2024-01-01", "2024-01-03")}, []int{0}},
		{
			name:  "disjoint share lane",
			items: []model.Interval{iv("2024-01-01", "2024-01-03"), iv("2024-01-05", "2024-01-07")},
			want:  []int{0, 0},
		},
		{
			name:  "overlap stacks",
			items: []model.Interval{iv("2024-01-01", "2024-01-05"), iv("2024-01-03", "2024-01-06")},
			want:  []int{0, 1},
		},
		{
			name:  "touching end day overlaps",
			items: []model.Interval{iv("2024-01-01", "2024-01-03"), iv("2024-01-03", "2024-01-04")},
			want:  []int{0, 1},
		},
		{
			name: "identical intervals get distinct lanes",
			items: []model.Interval{
				iv("2024-01-02", "2024-01-02"),
				iv("2024-01-02", "2024-01-02"),
				iv("2024-01-02", "2024-01-02"),
			},
			want: []int{0, 1, 2},
		},
		{
			name: "lane reuse after gap",
			items: []model.Interval{
				iv("2024-01-01", "2024-01-04"),
				iv("2024-01-02", "2024-01-03"),
				iv("2024-01-05", "2024-01-06"),
				iv("2024-01-06", "2024-01-08"),
			},
			want: []int{0, 1, 0, 1},
		},
		{
			name: "first fit fills lower hole",
			items: []model.Interval{
				iv("2024-01-01", "2024-01-02"),
				iv("2024-01-01", "2024-01-10"),
				iv("2024-01-04", "2024-01-05"),
			},
			want: []int{0, 1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignLanes(tt.items)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignLanes_MalformedIsTotal(t *testing.T) {
	items := []model.Interval{iv("2024-01-05", "2024-01-01"), iv("2024-01-02", "2024-01-03"), iv("", "")}
	assert.NotPanics(t, func() {
		lanes := AssignLanes(items)
		assert.Len(t, lanes, 3)
	})
}

func randomIntervals(r *rand.Rand, n int) []model.Interval {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Interval, n)
	for i := range out {
		start := base.AddDate(0, 0, r.Intn(30))
		end := start.AddDate(0, 0, r.Intn(6))
		out[i] = iv(start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return out
}

func TestAssignLanes_NoOverlapWithinLane(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		items := randomIntervals(r, 1+r.Intn(25))
		lanes := AssignLanes(items)
		require.Len(t, lanes, len(items))

		for i := range items {
			for j := i + 1; j < len(items); j++ {
				if lanes[i] == lanes[j] {
					assert.False(t, items[i].Overlaps(items[j]),
						fmt.Sprintf("round %d: items %d and %d share lane %d", round, i, j, lanes[i]))
				}
			}
		}
	}
}

func TestAssignLanes_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	items := randomIntervals(r, 40)
	first := AssignLanes(items)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, AssignLanes(items))
	}
}

func TestLaneCount(t *testing.T) {
	assert.Equal(t, 0, LaneCount(nil))
	assert.Equal(t, 1, LaneCount([]int{0, 0}))
	assert.Equal(t, 3, LaneCount([]int{0, 2, 1}))
}

func TestGeometry(t *testing.T) {
	g := DefaultGeometry()

	assert.Equal(t, g.MinRowHeight, g.RowHeight(0, 0))
	assert.Equal(t, g.RowPadding, g.EventTop(0))
	assert.Equal(t, g.RowPadding, g.TruckloadTop(0, 0))

	// truckload lanes start below all event lanes
	assert.Greater(t, g.TruckloadTop(0, 2), g.EventTop(1))
	assert.Equal(t, g.TruckloadTop(0, 2)+g.TruckloadLaneHeight+g.LaneGap, g.TruckloadTop(1, 2))

	h := g.RowHeight(2, 3)
	assert.Equal(t, 2*4+2*22+3*34, h)
}
