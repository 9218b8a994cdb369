package db

import (
	"context"
	"fmt"
	"time"

	"truckplan/internal/config"
)

// SyncDriversFromConfig applies fleet.yaml to the drivers table.
// It upserts drivers and marks drivers missing from the file inactive.
func (db *DB) SyncDriversFromConfig(ctx context.Context, cfg *config.FleetConfig) error {
	if cfg == nil {
		return fmt.Errorf("fleet config is nil")
	}

	now := time.Now()
	seen := make(map[int64]struct{})

	for _, d := range cfg.Drivers {
		// Preserve created_at if the driver already exists.
		_, err := db.ExecContext(ctx, `
            INSERT INTO drivers (id, full_name, color, is_active, created_at, updated_at)
            VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM drivers WHERE id = ?), ?), ?)
            ON CONFLICT(id) DO UPDATE SET
                full_name = excluded.full_name,
                color = excluded.color,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`,
			d.ID, d.FullName, d.Color, d.IsActive, d.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync driver %d: %w", d.ID, err)
		}
		seen[d.ID] = struct{}{}
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM drivers WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := db.ExecContext(ctx, `UPDATE drivers SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate driver %d: %w", id, err)
		}
	}
	return nil
}
