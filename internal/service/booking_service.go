package service

import (
	"context"
	"errors"
	"fmt"

	"bookcal/internal/drag"
	"bookcal/internal/events"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/schedule"
	"bookcal/internal/slots"

	"github.com/rs/zerolog"
)

var (
	// ErrSlotTaken is returned when the target interval overlaps another booking.
	ErrSlotTaken = errors.New("slot is already taken")
	// ErrNotActive is returned for bookings that no longer hold their slot.
	ErrNotActive = errors.New("booking is not active")
	// ErrInvalidInput wraps malformed request values.
	ErrInvalidInput = errors.New("invalid input")
)

// BookingService changes bookings and overrides and announces what they free up.
type BookingService struct {
	bookings  BookingStore
	overrides OverrideStore
	cache     CacheInvalidator
	events    EventPublisher
	logger    zerolog.Logger
}

var _ drag.Rescheduler = (*BookingService)(nil)

// NewBookingService creates the service. cache may be nil.
func NewBookingService(bookings BookingStore, overrides OverrideStore, cache CacheInvalidator, publisher EventPublisher, logger zerolog.Logger) *BookingService {
	return &BookingService{
		bookings:  bookings,
		overrides: overrides,
		cache:     cache,
		events:    publisher,
		logger:    logger.With().Str("component", "booking_service").Logger(),
	}
}

// CancelBooking cancels an active booking and publishes its interval as free.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Active() {
		return nil, fmt.Errorf("cancel booking %d (%s): %w", id, b.Status, ErrNotActive)
	}

	if err := s.bookings.UpdateBookingStatus(ctx, id, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	b.Status = models.StatusCancelled
	metrics.IncBookingCancelled()

	s.logger.Info().Int64("booking_id", id).Str("date", models.DateKey(b.Date)).Str("time", b.Time).Msg("booking cancelled")
	s.publishVacated(ctx, *b, events.ReasonCancelled)
	return b, nil
}

// Reschedule implements drag.Rescheduler.
func (s *BookingService) Reschedule(ctx context.Context, intent models.RescheduleIntent) error {
	_, err := s.RescheduleBooking(ctx, intent)
	return err
}

// RescheduleBooking moves a booking after re-checking the target against the
// current bookings of its staff member, then publishes the vacated interval.
func (s *BookingService) RescheduleBooking(ctx context.Context, intent models.RescheduleIntent) (*models.Booking, error) {
	if _, err := models.ParseClock(intent.NewTime); err != nil {
		return nil, fmt.Errorf("%w: new time %q", ErrInvalidInput, intent.NewTime)
	}
	if intent.NewDate.IsZero() {
		return nil, fmt.Errorf("%w: new date is required", ErrInvalidInput)
	}

	b, err := s.bookings.GetBooking(ctx, intent.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.Active() {
		return nil, fmt.Errorf("reschedule booking %d (%s): %w", b.ID, b.Status, ErrNotActive)
	}
	if models.SameDate(b.Date, intent.NewDate) && b.Time == intent.NewTime {
		return b, nil
	}

	target, err := s.bookings.BookingsForStaff(ctx, b.StaffID, intent.NewDate)
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", models.DateKey(intent.NewDate), err)
	}
	if !slots.IsSlotAvailable(intent.NewTime, b.DurationMinutes, target, b.ID) {
		metrics.IncReschedule("conflict")
		return nil, ErrSlotTaken
	}

	if err := s.bookings.MoveBooking(ctx, intent); err != nil {
		metrics.IncReschedule("error")
		return nil, fmt.Errorf("move booking %d: %w", b.ID, err)
	}
	metrics.IncReschedule("ok")

	old := *b
	b.Date = models.DateOnly(intent.NewDate)
	b.Time = intent.NewTime

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("from", models.DateKey(old.Date)+" "+old.Time).
		Str("to", models.DateKey(b.Date)+" "+b.Time).
		Msg("booking rescheduled")
	s.publishVacated(ctx, old, events.ReasonRescheduled)
	return b, nil
}

// SetOverride stores an override and publishes each of its shifts as free time.
func (s *BookingService) SetOverride(ctx context.Context, o *models.ScheduleOverride) error {
	if o.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if o.IsDayOff && len(o.Shifts) > 0 {
		return fmt.Errorf("%w: day off cannot have shifts", ErrInvalidInput)
	}
	if err := schedule.ValidateShifts(o.Shifts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.overrides.UpsertOverride(ctx, o); err != nil {
		return fmt.Errorf("save override: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateOverrides(ctx, o.Date)
	}

	log := s.logger.Info().Str("date", models.DateKey(o.Date)).Bool("day_off", o.IsDayOff)
	if o.StaffID != nil {
		log = log.Int64("staff_id", *o.StaffID)
	}
	log.Msg("schedule override saved")

	if o.IsDayOff {
		return nil
	}
	for _, sh := range o.Shifts {
		s.events.PublishFreed(ctx, events.FreedInterval{
			Date:   models.DateOnly(o.Date),
			Start:  sh.Start,
			End:    sh.End,
			Reason: events.ReasonOverride,
		})
	}
	return nil
}

func (s *BookingService) publishVacated(ctx context.Context, b models.Booking, reason string) {
	end := b.EndTime()
	if end == "" {
		return
	}
	s.events.PublishFreed(ctx, events.FreedInterval{
		Date:   models.DateOnly(b.Date),
		Start:  b.Time,
		End:    end,
		Reason: reason,
	})
}
