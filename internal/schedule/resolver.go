// Package schedule resolves the effective working shifts of a staff member for a date.
package schedule

import (
	"fmt"
	"time"

	"bookcal/internal/models"
)

// Resolve returns the effective schedule for staff on date.
// An override for the pair is authoritative and the template is not consulted;
// a staff-specific override wins over a global one. Returns nil when neither an
// override nor a template entry exists for the weekday.
func Resolve(date time.Time, staff models.Staff, overrides []models.ScheduleOverride) *models.EffectiveSchedule {
	if o := FindOverride(date, staff.ID, overrides); o != nil {
		if o.IsDayOff || len(o.Shifts) == 0 {
			return models.Closed()
		}
		return &models.EffectiveSchedule{Enabled: true, Shifts: o.Shifts}
	}

	day, ok := staff.WorkingHours[date.Weekday()]
	if !ok {
		return nil
	}
	if !day.Enabled {
		return models.Closed()
	}

	shifts := NormalizeDay(day)
	if len(shifts) == 0 {
		return models.Closed()
	}
	return &models.EffectiveSchedule{Enabled: true, Shifts: shifts}
}

// FindOverride picks the authoritative override for (date, staffID).
func FindOverride(date time.Time, staffID int64, overrides []models.ScheduleOverride) *models.ScheduleOverride {
	var global *models.ScheduleOverride
	for i := range overrides {
		o := &overrides[i]
		if !o.AppliesTo(date, staffID) {
			continue
		}
		if o.StaffID != nil {
			return o
		}
		if global == nil {
			global = o
		}
	}
	return global
}

// NormalizeDay returns the shift list of a template day, converting the legacy
// single start/end pair into a one-element list.
func NormalizeDay(day models.DayHours) []models.Shift {
	if len(day.Shifts) > 0 {
		return day.Shifts
	}
	if day.Start != "" && day.End != "" {
		return []models.Shift{{Start: day.Start, End: day.End}}
	}
	return nil
}

// ShiftRanges converts shifts into [start, end) minute ranges, dropping malformed ones.
func ShiftRanges(shifts []models.Shift) [][2]int {
	ranges := make([][2]int, 0, len(shifts))
	for _, s := range shifts {
		start, end, ok := s.Minutes()
		if !ok {
			continue
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// ValidateShifts checks that shifts parse, have start < end and are ascending without overlap.
func ValidateShifts(shifts []models.Shift) error {
	prevEnd := -1
	for i, s := range shifts {
		start, err := models.ParseClock(s.Start)
		if err != nil {
			return fmt.Errorf("shift[%d].start: %w", i, err)
		}
		end, err := models.ParseClock(s.End)
		if err != nil {
			return fmt.Errorf("shift[%d].end: %w", i, err)
		}
		if start >= end {
			return fmt.Errorf("shift[%d]: end must be after start", i)
		}
		if start < prevEnd {
			return fmt.Errorf("shift[%d]: overlaps or precedes previous shift", i)
		}
		prevEnd = end
	}
	return nil
}
