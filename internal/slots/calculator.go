package slots

import (
	"time"

	"bookcal/internal/models"
	"bookcal/internal/schedule"
)

// DefaultInterval is the step, in minutes, between candidate slot starts.
const DefaultInterval = 15

// IsSlotAvailable reports whether a booking of duration minutes starting at
// startTime ("HH:MM") would not overlap any occupying booking. The booking with
// ignoreID is skipped (0 skips nothing). An unparseable start is never available.
func IsSlotAvailable(startTime string, duration int, bookings []models.Booking, ignoreID int64) bool {
	start, err := models.ParseClock(startTime)
	if err != nil {
		return false
	}
	return FitsAt(start, duration, bookings, ignoreID)
}

// FitsAt is IsSlotAvailable on minutes since midnight.
func FitsAt(start, duration int, bookings []models.Booking, ignoreID int64) bool {
	if duration <= 0 {
		return false
	}
	end := start + duration
	for i := range bookings {
		b := &bookings[i]
		if ignoreID != 0 && b.ID == ignoreID {
			continue
		}
		if !b.Occupies() {
			continue
		}
		bStart, bEnd, ok := b.Interval()
		if !ok {
			continue
		}
		// Half-open: [start,end) overlaps [bStart,bEnd) iff bStart < end && start < bEnd.
		if bStart < end && start < bEnd {
			return false
		}
	}
	return true
}

// Options tune a Calculator.
type Options struct {
	// Interval is the scan step in minutes. Default: 15.
	Interval int
	// Now, when set, drops start times already in the past on today's date.
	Now func() time.Time
	// MinAdvance is added to Now before comparing.
	MinAdvance time.Duration
}

// Calculator enumerates bookable slots over resolved schedules.
type Calculator struct {
	interval   int
	now        func() time.Time
	minAdvance time.Duration
}

// NewCalculator creates a calculator with the given options.
func NewCalculator(opts Options) *Calculator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Calculator{
		interval:   opts.Interval,
		now:        opts.Now,
		minAdvance: opts.MinAdvance,
	}
}

// Interval returns the scan step in minutes.
func (c *Calculator) Interval() int {
	return c.interval
}

// AvailableSlots returns the "HH:MM" starts on date where duration fits inside a
// single shift of staff's effective schedule without conflicting with bookings.
// Each shift is scanned independently so a slot never spans a break.
func (c *Calculator) AvailableSlots(
	date time.Time,
	staff models.Staff,
	duration int,
	bookings []models.Booking,
	overrides []models.ScheduleOverride,
	ignoreID int64,
) []string {
	if duration <= 0 {
		return []string{}
	}

	eff := schedule.Resolve(date, staff, overrides)
	if eff == nil || !eff.Enabled {
		return []string{}
	}

	dayBookings := BookingsOn(date, staff.ID, bookings)
	earliest := c.earliestStart(date)

	result := []string{}
	for _, r := range schedule.ShiftRanges(eff.Shifts) {
		for t := r[0]; t+duration <= r[1]; t += c.interval {
			if t < earliest {
				continue
			}
			if FitsAt(t, duration, dayBookings, ignoreID) {
				result = append(result, models.FormatClock(t))
			}
		}
	}
	return result
}

// AvailableDates returns the subset of dates with at least one available slot.
func (c *Calculator) AvailableDates(
	dates []time.Time,
	staff models.Staff,
	duration int,
	bookings []models.Booking,
	overrides []models.ScheduleOverride,
) []time.Time {
	result := []time.Time{}
	for _, d := range dates {
		if len(c.AvailableSlots(d, staff, duration, bookings, overrides, 0)) > 0 {
			result = append(result, d)
		}
	}
	return result
}

// HasAvailableSlotsInRange reports whether duration fits somewhere in
// [fromTime, toTime) on date. The window is clamped to each shift separately.
func (c *Calculator) HasAvailableSlotsInRange(
	date time.Time,
	staff models.Staff,
	duration int,
	fromTime, toTime string,
	bookings []models.Booking,
	overrides []models.ScheduleOverride,
) bool {
	from, err := models.ParseClock(fromTime)
	if err != nil {
		return false
	}
	to, err := models.ParseClock(toTime)
	if err != nil || to <= from || duration <= 0 {
		return false
	}

	eff := schedule.Resolve(date, staff, overrides)
	if eff == nil || !eff.Enabled {
		return false
	}

	dayBookings := BookingsOn(date, staff.ID, bookings)
	earliest := c.earliestStart(date)

	for _, r := range schedule.ShiftRanges(eff.Shifts) {
		start := max(r[0], from)
		end := min(r[1], to)
		for t := start; t+duration <= end; t += DefaultInterval {
			if t < earliest {
				continue
			}
			if FitsAt(t, duration, dayBookings, 0) {
				return true
			}
		}
	}
	return false
}

// earliestStart returns the first bookable minute on date, or 0 without a clock.
func (c *Calculator) earliestStart(date time.Time) int {
	if c.now == nil {
		return 0
	}
	now := c.now().Add(c.minAdvance)
	today := models.DateOnly(now)
	day := models.DateOnly(date)
	switch {
	case day.Before(today):
		return models.MinutesPerDay + 1
	case day.After(today):
		return 0
	}
	return now.Hour()*60 + now.Minute()
}

// BookingsOn filters bookings to one staff member and date.
func BookingsOn(date time.Time, staffID int64, bookings []models.Booking) []models.Booking {
	var result []models.Booking
	for _, b := range bookings {
		if b.StaffID == staffID && models.SameDate(b.Date, date) {
			result = append(result, b)
		}
	}
	return result
}
