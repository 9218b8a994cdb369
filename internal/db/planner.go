package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"truckplan/internal/metrics"
	"truckplan/internal/model"
)

// Name identifies the source in logs and metrics.
func (db *DB) Name() string {
	return "sqlite"
}

// FetchRange returns active drivers plus the truckloads and driver events
// overlapping [start, end].
func (db *DB) FetchRange(ctx context.Context, start, end string) (*model.PlannerData, error) {
	data, err := db.fetchRange(ctx, start, end)
	if err != nil {
		metrics.IncRangeFetch(db.Name(), "error")
		return nil, fmt.Errorf("fetch planner range %s..%s: %w", start, end, err)
	}
	metrics.IncRangeFetch(db.Name(), "ok")
	return data, nil
}

func (db *DB) fetchRange(ctx context.Context, start, end string) (*model.PlannerData, error) {
	data := &model.PlannerData{
		Drivers:      []model.Driver{},
		Truckloads:   []model.Truckload{},
		DriverEvents: []model.DriverEvent{},
	}

	drivers, err := db.GetActiveDrivers(ctx)
	if err != nil {
		return nil, err
	}
	data.Drivers = drivers

	rows, err := db.QueryContext(ctx, `
        SELECT id, driver_id, start_date, end_date, start_time, end_time, status, description
        FROM truckloads
        WHERE start_date <= ? AND end_date >= ?
        ORDER BY start_date, id`, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Truckload
		var status string
		if err := rows.Scan(&t.ID, &t.DriverID, &t.StartDate, &t.EndDate, &t.StartTime, &t.EndTime, &status, &t.Description); err != nil {
			return nil, err
		}
		t.Status = model.TruckloadStatus(status)
		data.Truckloads = append(data.Truckloads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := db.QueryContext(ctx, `
        SELECT id, driver_id, start_date, end_date, event_type, description
        FROM driver_events
        WHERE start_date <= ? AND end_date >= ?
        ORDER BY start_date, id`, end, start)
	if err != nil {
		return nil, err
	}
	defer evRows.Close()
	for evRows.Next() {
		var e model.DriverEvent
		var eventType string
		if err := evRows.Scan(&e.ID, &e.DriverID, &e.StartDate, &e.EndDate, &eventType, &e.Description); err != nil {
			return nil, err
		}
		e.EventType = model.EventType(eventType)
		data.DriverEvents = append(data.DriverEvents, e)
	}
	return data, evRows.Err()
}

// GetActiveDrivers returns active drivers by ID.
func (db *DB) GetActiveDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, full_name, color FROM drivers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.FullName, &d.Color); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// GetTruckload returns a truckload by ID.
func (db *DB) GetTruckload(ctx context.Context, id int64) (*model.Truckload, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, driver_id, start_date, end_date, start_time, end_time, status, description
        FROM truckloads WHERE id = ?`, id)

	var t model.Truckload
	var status string
	err := row.Scan(&t.ID, &t.DriverID, &t.StartDate, &t.EndDate, &t.StartTime, &t.EndTime, &status, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = model.TruckloadStatus(status)
	return &t, nil
}

// CreateTruckload inserts a truckload and sets its ID.
func (db *DB) CreateTruckload(ctx context.Context, t *model.Truckload) error {
	if t.Status == "" {
		t.Status = model.TruckloadDraft
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `
        INSERT INTO truckloads (driver_id, start_date, end_date, start_time, end_time, status, description, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.DriverID, t.StartDate, t.EndDate, t.StartTime, t.EndTime, string(t.Status), t.Description, now, now)
	if err != nil {
		return fmt.Errorf("create truckload: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// CreateDriverEvent inserts a driver event and sets its ID.
func (db *DB) CreateDriverEvent(ctx context.Context, e *model.DriverEvent) error {
	if e.EventType == "" {
		e.EventType = model.EventOther
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `
        INSERT INTO driver_events (driver_id, start_date, end_date, event_type, description, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DriverID, e.StartDate, e.EndDate, string(e.EventType), e.Description, now, now)
	if err != nil {
		return fmt.Errorf("create driver event: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ReassignTruckload moves a truckload to another driver. Repeating the
// same reassignment is a no-op.
func (db *DB) ReassignTruckload(ctx context.Context, truckloadID, driverID int64) error {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM drivers WHERE id = ?`, driverID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDriverNotFound
	}
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
        UPDATE truckloads SET driver_id = ?, updated_at = ? WHERE id = ?`,
		driverID, time.Now(), truckloadID)
	if err != nil {
		return fmt.Errorf("reassign truckload %d: %w", truckloadID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
