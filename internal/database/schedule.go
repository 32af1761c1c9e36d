package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookcal/internal/models"
)

// UpsertStaff stores a staff member and replaces its weekly template.
func (db *DB) UpsertStaff(ctx context.Context, staff models.Staff) error {
	if staff.ID <= 0 {
		return fmt.Errorf("staff id must be positive, got %d", staff.ID)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staff (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		staff.ID, staff.Name, now, now,
	); err != nil {
		return fmt.Errorf("upsert staff %d: %w", staff.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM working_hours WHERE staff_id = ?", staff.ID); err != nil {
		return fmt.Errorf("clear working hours: %w", err)
	}

	for weekday, day := range staff.WorkingHours {
		shifts := day.Shifts
		if len(shifts) == 0 && day.Start != "" && day.End != "" {
			shifts = []models.Shift{{Start: day.Start, End: day.End}}
		}
		raw, err := encodeShifts(shifts)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO working_hours (staff_id, weekday, enabled, shifts) VALUES (?, ?, ?, ?)",
			staff.ID, int(weekday), day.Enabled, raw,
		); err != nil {
			return fmt.Errorf("insert working hours %s: %w", weekday, err)
		}
	}

	return tx.Commit()
}

// GetStaff returns a staff member with its weekly template.
func (db *DB) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	s := models.Staff{ID: id, WorkingHours: models.WorkingHours{}}
	err := db.QueryRowContext(ctx, "SELECT name FROM staff WHERE id = ?", id).Scan(&s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %d: %w", id, err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT weekday, enabled, shifts FROM working_hours WHERE staff_id = ? ORDER BY weekday", id)
	if err != nil {
		return nil, fmt.Errorf("get working hours %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			weekday int
			enabled bool
			raw     string
		)
		if err := rows.Scan(&weekday, &enabled, &raw); err != nil {
			return nil, err
		}
		shifts, err := decodeShifts(raw)
		if err != nil {
			return nil, err
		}
		s.WorkingHours[time.Weekday(weekday)] = models.DayHours{Enabled: enabled, Shifts: shifts}
	}
	return &s, rows.Err()
}

// ListStaff returns all staff members with their templates.
func (db *DB) ListStaff(ctx context.Context) ([]models.Staff, error) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM staff ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.Staff, 0, len(ids))
	for _, id := range ids {
		s, err := db.GetStaff(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, nil
}

// UpsertOverride creates or replaces the override for (date, staff).
func (db *DB) UpsertOverride(ctx context.Context, o *models.ScheduleOverride) error {
	raw, err := encodeShifts(o.Shifts)
	if err != nil {
		return err
	}
	now := time.Now()
	err = db.QueryRowContext(ctx, `
		INSERT INTO schedule_overrides (date, staff_id, is_day_off, shifts, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, staff_id) DO UPDATE SET
			is_day_off = excluded.is_day_off,
			shifts = excluded.shifts,
			note = excluded.note,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		dateKey(o.Date), staffKey(o.StaffID), o.IsDayOff, raw, o.Note, now, now,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert override %s: %w", dateKey(o.Date), err)
	}
	o.UpdatedAt = now
	return nil
}

// DeleteOverride removes the override for (date, staff). A nil staffID targets the global one.
func (db *DB) DeleteOverride(ctx context.Context, date time.Time, staffID *int64) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM schedule_overrides WHERE date = ? AND staff_id = ?", dateKey(date), staffKey(staffID))
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverrides returns every override (global and per staff) for date.
func (db *DB) ListOverrides(ctx context.Context, date time.Time) ([]models.ScheduleOverride, error) {
	return db.ListOverridesBetween(ctx, date, date)
}

// ListOverridesBetween returns overrides dated from..to inclusive.
func (db *DB) ListOverridesBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, staff_id, is_day_off, shifts, note, created_at, updated_at
		FROM schedule_overrides
		WHERE date BETWEEN ? AND ?
		ORDER BY date, staff_id`,
		dateKey(from), dateKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var result []models.ScheduleOverride
	for rows.Next() {
		var (
			o       models.ScheduleOverride
			date    string
			staffID int64
			raw     string
			note    sql.NullString
		)
		if err := rows.Scan(&o.ID, &date, &staffID, &o.IsDayOff, &raw, &note, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if o.Date, err = parseDateKey(date); err != nil {
			return nil, err
		}
		if staffID != 0 {
			id := staffID
			o.StaffID = &id
		}
		if o.Shifts, err = decodeShifts(raw); err != nil {
			return nil, err
		}
		o.Note = note.String
		result = append(result, o)
	}
	return result, rows.Err()
}

func staffKey(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func encodeShifts(shifts []models.Shift) (string, error) {
	if shifts == nil {
		shifts = []models.Shift{}
	}
	raw, err := json.Marshal(shifts)
	if err != nil {
		return "", fmt.Errorf("encode shifts: %w", err)
	}
	return string(raw), nil
}

func decodeShifts(raw string) ([]models.Shift, error) {
	var shifts []models.Shift
	if raw == "" {
		return shifts, nil
	}
	if err := json.Unmarshal([]byte(raw), &shifts); err != nil {
		return nil, fmt.Errorf("decode shifts: %w", err)
	}
	return shifts, nil
}
