package models

import "time"

// Shift is a contiguous working interval [Start, End) within a day.
type Shift struct {
	Start string `json:"start" yaml:"start"` // "09:00"
	End   string `json:"end" yaml:"end"`     // "13:00"
}

// Minutes returns the shift bounds in minutes since midnight.
// ok is false for unparseable or empty shifts.
func (s Shift) Minutes() (start, end int, ok bool) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseClock(s.End)
	if err != nil {
		return 0, 0, false
	}
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// DayHours is one weekday entry of a working-hours template.
// Start and End hold the legacy single-pair shape; Shifts is the current shape.
type DayHours struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Shifts  []Shift `json:"shifts,omitempty" yaml:"shifts,omitempty"`
	Start   string  `json:"start,omitempty" yaml:"start,omitempty"`
	End     string  `json:"end,omitempty" yaml:"end,omitempty"`
}

// WorkingHours is the recurring weekly template of a staff member.
type WorkingHours map[time.Weekday]DayHours

// Staff is a provider whose calendar is being scheduled.
type Staff struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	WorkingHours WorkingHours `json:"working_hours"`
}

// ScheduleOverride replaces the template for one date.
// A nil StaffID applies to every staff member without a more specific override.
type ScheduleOverride struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	StaffID   *int64    `json:"staff_id,omitempty"`
	IsDayOff  bool      `json:"is_day_off"`
	Shifts    []Shift   `json:"shifts,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the override targets the staff member on date.
func (o *ScheduleOverride) AppliesTo(date time.Time, staffID int64) bool {
	if !SameDate(o.Date, date) {
		return false
	}
	return o.StaffID == nil || *o.StaffID == staffID
}

// EffectiveSchedule is the resolved set of shifts for one (date, staff) pair.
type EffectiveSchedule struct {
	Enabled bool    `json:"enabled"`
	Shifts  []Shift `json:"shifts"`
}

// Closed is the effective schedule of a day without working hours.
func Closed() *EffectiveSchedule {
	return &EffectiveSchedule{Enabled: false, Shifts: []Shift{}}
}
