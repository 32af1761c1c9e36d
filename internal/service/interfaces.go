// Package service ties calendar stores to the availability, drag and
// waiting-list engines.
package service

import (
	"context"
	"time"

	"bookcal/internal/events"
	"bookcal/internal/models"
)

// BookingStore reads and writes bookings.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	BookingsForStaff(ctx context.Context, staffID int64, date time.Time) ([]models.Booking, error)
	BookingsForStaffBetween(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error)
	MoveBooking(ctx context.Context, intent models.RescheduleIntent) error
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
}

// ScheduleStore reads staff templates and overrides. The Redis cache and the
// database both satisfy it.
type ScheduleStore interface {
	GetStaff(ctx context.Context, id int64) (*models.Staff, error)
	ListOverrides(ctx context.Context, date time.Time) ([]models.ScheduleOverride, error)
	ListOverridesBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleOverride, error)
}

// OverrideStore persists per-date overrides.
type OverrideStore interface {
	UpsertOverride(ctx context.Context, o *models.ScheduleOverride) error
}

// CacheInvalidator drops cached schedule reads after writes.
type CacheInvalidator interface {
	InvalidateOverrides(ctx context.Context, date time.Time)
}

// EventPublisher announces freed calendar intervals.
type EventPublisher interface {
	PublishFreed(ctx context.Context, freed events.FreedInterval)
}
