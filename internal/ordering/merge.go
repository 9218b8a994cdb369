package ordering

import (
	"sort"
	"strings"

	"truckplan/internal/model"
)

// Merge puts live drivers named in saved first, in saved order, followed by
// the remaining live drivers in their incoming order. IDs in saved that are
// no longer live are ignored.
func Merge(live []model.Driver, saved []int64) []model.Driver {
	byID := make(map[int64]model.Driver, len(live))
	for _, d := range live {
		byID[d.ID] = d
	}

	out := make([]model.Driver, 0, len(live))
	placed := make(map[int64]bool, len(live))
	for _, id := range saved {
		d, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		out = append(out, d)
		placed[id] = true
	}
	for _, d := range live {
		if !placed[d.ID] {
			out = append(out, d)
			placed[d.ID] = true
		}
	}
	return out
}

// MergeIDs is Merge over bare IDs.
func MergeIDs(live, saved []int64) []int64 {
	drivers := make([]model.Driver, len(live))
	for i, id := range live {
		drivers[i] = model.Driver{ID: id}
	}
	return IDs(Merge(drivers, saved))
}

// DefaultOrder sorts drivers alphabetically by name, case-insensitively,
// with ID as the tie breaker.
func DefaultOrder(drivers []model.Driver) []model.Driver {
	out := append([]model.Driver(nil), drivers...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].FullName), strings.ToLower(out[j].FullName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Arrange applies a saved order on top of the default order.
func Arrange(live []model.Driver, saved []int64) []model.Driver {
	return Merge(DefaultOrder(live), saved)
}

// IDs extracts driver IDs in order.
func IDs(drivers []model.Driver) []int64 {
	out := make([]int64, len(drivers))
	for i, d := range drivers {
		out[i] = d.ID
	}
	return out
}

// Move removes the element at from and inserts it at to.
// Out of range indexes return a copy of ids unchanged.
func Move(ids []int64, from, to int) []int64 {
	out := append([]int64(nil), ids...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	v := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]int64{v}, out[to:]...)...)
	return out
}

// MoveID moves source to the current position of target.
// It reports false when either ID is missing or they are equal.
func MoveID(ids []int64, source, target int64) ([]int64, bool) {
	from, to := -1, -1
	for i, id := range ids {
		switch id {
		case source:
			from = i
		case target:
			to = i
		}
	}
	if from < 0 || to < 0 || source == target {
		return append([]int64(nil), ids...), false
	}
	return Move(ids, from, to), true
}

// FilterVisible drops hidden drivers, preserving order.
func FilterVisible(drivers []model.Driver, hidden []int64) []model.Driver {
	if len(hidden) == 0 {
		return drivers
	}
	skip := make(map[int64]bool, len(hidden))
	for _, id := range hidden {
		skip[id] = true
	}
	out := make([]model.Driver, 0, len(drivers))
	for _, d := range drivers {
		if !skip[d.ID] {
			out = append(out, d)
		}
	}
	return out
}
