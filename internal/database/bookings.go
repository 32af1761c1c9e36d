package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookcal/internal/models"
)

const bookingColumns = `id, staff_id, date, time, duration_minutes, status, client_name, service_name, created_at, updated_at`

// CreateBooking inserts b and sets its ID.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.DurationMinutes <= 0 {
		return fmt.Errorf("booking duration must be positive, got %d", b.DurationMinutes)
	}
	if _, err := models.ParseClock(b.Time); err != nil {
		return fmt.Errorf("booking time: %w", err)
	}
	if b.Status == "" {
		b.Status = models.StatusPendingApproval
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (staff_id, date, time, duration_minutes, status, client_name, service_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.StaffID, dateKey(b.Date), b.Time, b.DurationMinutes, string(b.Status), b.ClientName, b.ServiceName, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// BookingsForStaff returns all bookings of staffID on date, any status.
func (db *DB) BookingsForStaff(ctx context.Context, staffID int64, date time.Time) ([]models.Booking, error) {
	return db.BookingsForStaffBetween(ctx, staffID, date, date)
}

// BookingsForStaffBetween returns all bookings of staffID dated from..to inclusive.
func (db *DB) BookingsForStaffBetween(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE staff_id = ? AND date BETWEEN ? AND ? ORDER BY date, time",
		staffID, dateKey(from), dateKey(to),
	)
}

// ActiveBookingsOn returns pending and confirmed bookings on date across all staff.
func (db *DB) ActiveBookingsOn(ctx context.Context, date time.Time) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE date = ? AND status IN (?, ?) ORDER BY time",
		dateKey(date), string(models.StatusPendingApproval), string(models.StatusConfirmed),
	)
}

// MoveBooking writes a new date and time onto an existing booking.
func (db *DB) MoveBooking(ctx context.Context, intent models.RescheduleIntent) error {
	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET date = ?, time = ?, updated_at = ? WHERE id = ?",
		dateKey(intent.NewDate), intent.NewTime, time.Now(), intent.BookingID,
	)
	if err != nil {
		return fmt.Errorf("move booking %d: %w", intent.BookingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBookingStatus sets the status of a booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid booking status %q", status)
	}
	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?", string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update booking %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	result := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*models.Booking, error) {
	var (
		b                   models.Booking
		date, status        string
		client, serviceName sql.NullString
	)
	if err := s.Scan(&b.ID, &b.StaffID, &date, &b.Time, &b.DurationMinutes, &status,
		&client, &serviceName, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseDateKey(date)
	if err != nil {
		return nil, err
	}
	b.Date = d
	b.Status = models.BookingStatus(status)
	b.ClientName = client.String
	b.ServiceName = serviceName.String
	return &b, nil
}
