package config

import (
	"context"
	"os"
	"time"
)

// FleetDiff lists driver IDs that differ between two rosters.
type FleetDiff struct {
	Added   []int64
	Removed []int64
	Changed []int64
}

// Empty reports whether the rosters are the same.
func (d FleetDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Count is the number of drivers touched.
func (d FleetDiff) Count() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}

// DiffFleet compares rosters by driver ID in next's order. A nil prev
// reports every driver as added.
func DiffFleet(prev, next *FleetConfig) FleetDiff {
	var diff FleetDiff
	old := make(map[int64]DriverConfig)
	if prev != nil {
		for _, d := range prev.Drivers {
			old[d.ID] = d
		}
	}

	seen := make(map[int64]bool, len(next.Drivers))
	for _, d := range next.Drivers {
		seen[d.ID] = true
		was, ok := old[d.ID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, d.ID)
		case was != d:
			diff.Changed = append(diff.Changed, d.ID)
		}
	}
	if prev != nil {
		for _, d := range prev.Drivers {
			if !seen[d.ID] {
				diff.Removed = append(diff.Removed, d.ID)
			}
		}
	}
	return diff
}

// WatchFleet loads fleet.yaml, hands it to onUpdate, then polls the file's
// mtime. A rewrite that leaves the roster unchanged is not reported.
func WatchFleet(ctx context.Context, path string, interval time.Duration, onUpdate func(*FleetConfig, FleetDiff)) error {
	if path == "" {
		path = "configs/fleet.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	current, err := LoadFleetConfig(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()
	if onUpdate != nil {
		onUpdate(current, DiffFleet(nil, current))
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			next, err := LoadFleetConfig(path)
			if err != nil {
				// half-written file, retry on the next tick
				continue
			}
			lastMod = info.ModTime()

			diff := DiffFleet(current, next)
			current = next
			if diff.Empty() || onUpdate == nil {
				continue
			}
			onUpdate(next, diff)
		}
	}()

	return nil
}
