package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPendingApproval BookingStatus = "pending_approval"
	StatusConfirmed       BookingStatus = "confirmed"
	StatusCancelled       BookingStatus = "cancelled"
	StatusCompleted       BookingStatus = "completed"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Booking is a placed appointment for one staff member on one date.
type Booking struct {
	ID              int64         `json:"id"`
	StaffID         int64         `json:"staff_id"`
	Date            time.Time     `json:"date"`
	Time            string        `json:"time"` // "10:30"
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	ClientName      string        `json:"client_name,omitempty"`
	ServiceName     string        `json:"service_name,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Occupies reports whether the booking blocks its interval for conflict purposes.
// Only cancelled bookings give their time back.
func (b *Booking) Occupies() bool {
	return b.Status != StatusCancelled
}

// Active reports whether the booking can still be moved or cancelled.
func (b *Booking) Active() bool {
	return b.Status == StatusPendingApproval || b.Status == StatusConfirmed
}

// Interval returns the booking's [start, end) in minutes since midnight.
// ok is false when the start time cannot be parsed or the duration is not positive.
func (b *Booking) Interval() (start, end int, ok bool) {
	if b.DurationMinutes <= 0 {
		return 0, 0, false
	}
	start, err := ParseClock(b.Time)
	if err != nil {
		return 0, 0, false
	}
	return start, start + b.DurationMinutes, true
}

// EndTime returns the "HH:MM" end of the booking, or "" when the booking is malformed.
func (b *Booking) EndTime() string {
	_, end, ok := b.Interval()
	if !ok {
		return ""
	}
	return FormatClock(end)
}

// OverlapsWith checks if this booking overlaps with another booking on the same date.
// Uses half-open interval [start, end) semantics, touching endpoints do not overlap.
func (b *Booking) OverlapsWith(other *Booking) bool {
	if !SameDate(b.Date, other.Date) {
		return false
	}
	s1, e1, ok1 := b.Interval()
	s2, e2, ok2 := other.Interval()
	if !ok1 || !ok2 {
		return false
	}
	return s1 < e2 && s2 < e1
}

// RescheduleIntent asks the booking store to move a booking to a new date and time.
type RescheduleIntent struct {
	BookingID int64     `json:"booking_id"`
	NewDate   time.Time `json:"new_date"`
	NewTime   string    `json:"new_time"`
}
