package service

import (
	"context"
	"fmt"
	"time"

	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/schedule"
	"bookcal/internal/slots"
	"bookcal/shared/export"
)

// AvailabilityService answers schedule and slot queries from store data.
type AvailabilityService struct {
	schedules ScheduleStore
	bookings  BookingStore
	calc      *slots.Calculator
}

func NewAvailabilityService(schedules ScheduleStore, bookings BookingStore, calc *slots.Calculator) *AvailabilityService {
	return &AvailabilityService{schedules: schedules, bookings: bookings, calc: calc}
}

// Schedule returns the effective schedule of staffID on date.
func (s *AvailabilityService) Schedule(ctx context.Context, staffID int64, date time.Time) (*models.EffectiveSchedule, error) {
	staff, err := s.schedules.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.schedules.ListOverrides(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	metrics.IncSlotQuery("schedule")
	if eff := schedule.Resolve(date, *staff, overrides); eff != nil {
		return eff, nil
	}
	return models.Closed(), nil
}

// Slots returns the free starts for duration on date. ignoreID excludes one
// booking from conflict checks, used when moving it.
func (s *AvailabilityService) Slots(ctx context.Context, staffID int64, date time.Time, duration int, ignoreID int64) ([]string, error) {
	staff, err := s.schedules.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.schedules.ListOverrides(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	bookings, err := s.bookings.BookingsForStaff(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	metrics.IncSlotQuery("slots")
	return s.calc.AvailableSlots(date, *staff, duration, bookings, overrides, ignoreID), nil
}

// Dates returns the dates in [from, to] with at least one free slot.
func (s *AvailabilityService) Dates(ctx context.Context, staffID int64, from, to time.Time, duration int) ([]time.Time, error) {
	staff, overrides, bookings, err := s.loadRange(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	metrics.IncSlotQuery("dates")
	return s.calc.AvailableDates(models.DatesBetween(from, to), *staff, duration, bookings, overrides), nil
}

// HasSlotsInRange reports whether duration fits in [fromTime, toTime) on date.
func (s *AvailabilityService) HasSlotsInRange(ctx context.Context, staffID int64, date time.Time, duration int, fromTime, toTime string) (bool, error) {
	staff, err := s.schedules.GetStaff(ctx, staffID)
	if err != nil {
		return false, err
	}
	overrides, err := s.schedules.ListOverrides(ctx, date)
	if err != nil {
		return false, fmt.Errorf("list overrides: %w", err)
	}
	bookings, err := s.bookings.BookingsForStaff(ctx, staffID, date)
	if err != nil {
		return false, fmt.Errorf("list bookings: %w", err)
	}
	metrics.IncSlotQuery("range")
	return s.calc.HasAvailableSlotsInRange(date, *staff, duration, fromTime, toTime, bookings, overrides), nil
}

// Grid returns per-date free starts in [from, to] for the availability export.
func (s *AvailabilityService) Grid(ctx context.Context, staffID int64, from, to time.Time, duration int) ([]export.DayAvailability, error) {
	staff, overrides, bookings, err := s.loadRange(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	metrics.IncSlotQuery("grid")

	dates := models.DatesBetween(from, to)
	days := make([]export.DayAvailability, 0, len(dates))
	for _, d := range dates {
		eff := schedule.Resolve(d, *staff, overrides)
		days = append(days, export.DayAvailability{
			Date:   d,
			Closed: eff == nil || !eff.Enabled,
			Slots:  s.calc.AvailableSlots(d, *staff, duration, bookings, overrides, 0),
		})
	}
	return days, nil
}

func (s *AvailabilityService) loadRange(ctx context.Context, staffID int64, from, to time.Time) (*models.Staff, []models.ScheduleOverride, []models.Booking, error) {
	staff, err := s.schedules.GetStaff(ctx, staffID)
	if err != nil {
		return nil, nil, nil, err
	}
	overrides, err := s.schedules.ListOverridesBetween(ctx, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list overrides: %w", err)
	}
	bookings, err := s.bookings.BookingsForStaffBetween(ctx, staffID, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list bookings: %w", err)
	}
	return staff, overrides, bookings, nil
}
