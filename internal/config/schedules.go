package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bookcal/internal/models"
	"bookcal/internal/schedule"

	"gopkg.in/yaml.v3"
)

// StaffConfig is one provider's weekly template. Weekday keys are English
// day names ("monday") or their three-letter forms ("mon").
type StaffConfig struct {
	ID           int64                      `yaml:"id"`
	Name         string                     `yaml:"name"`
	WorkingHours map[string]models.DayHours `yaml:"working_hours"`
}

// HolidayConfig closes every staff member on a date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// OverrideConfig replaces the template for one date.
type OverrideConfig struct {
	Date    string         `yaml:"date"`
	StaffID *int64         `yaml:"staff_id,omitempty"`
	DayOff  bool           `yaml:"day_off"`
	Shifts  []models.Shift `yaml:"shifts,omitempty"`
	Note    string         `yaml:"note,omitempty"`
}

// SchedulesConfig is the root of schedules.yaml.
type SchedulesConfig struct {
	Staff     []StaffConfig    `yaml:"staff"`
	Holidays  []HolidayConfig  `yaml:"holidays"`
	Overrides []OverrideConfig `yaml:"overrides"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday resolves a weekday key from schedules.yaml.
func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// LoadSchedules loads and validates schedules configuration from YAML file.
func LoadSchedules(path string) (*SchedulesConfig, error) {
	if path == "" {
		path = "configs/schedules.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules config: %w", err)
	}

	var cfg SchedulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schedules config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedules config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *SchedulesConfig) Validate() error {
	if len(c.Staff) == 0 {
		return fmt.Errorf("no staff defined")
	}

	ids := make(map[int64]bool)
	for i, s := range c.Staff {
		if s.ID <= 0 {
			return fmt.Errorf("staff[%d]: id must be positive, got %d", i, s.ID)
		}
		if ids[s.ID] {
			return fmt.Errorf("staff[%d]: duplicate id %d", i, s.ID)
		}
		ids[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("staff[%d]: name is required", i)
		}

		seen := make(map[time.Weekday]string)
		for key, day := range s.WorkingHours {
			wd, ok := ParseWeekday(key)
			if !ok {
				return fmt.Errorf("staff[%d].working_hours: unknown weekday %q", i, key)
			}
			if prev, dup := seen[wd]; dup {
				return fmt.Errorf("staff[%d].working_hours: %q and %q name the same day", i, prev, key)
			}
			seen[wd] = key

			if err := validateDay(day); err != nil {
				return fmt.Errorf("staff[%d].working_hours.%s: %w", i, key, err)
			}
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := models.ParseDate(h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, o := range c.Overrides {
		if _, err := models.ParseDate(o.Date); err != nil {
			return fmt.Errorf("override[%d]: invalid date format '%s', expected YYYY-MM-DD", i, o.Date)
		}
		if o.StaffID != nil && !ids[*o.StaffID] {
			return fmt.Errorf("override[%d]: unknown staff_id %d", i, *o.StaffID)
		}
		if o.DayOff && len(o.Shifts) > 0 {
			return fmt.Errorf("override[%d]: day_off override cannot have shifts", i)
		}
		if err := schedule.ValidateShifts(o.Shifts); err != nil {
			return fmt.Errorf("override[%d]: %w", i, err)
		}
	}

	return nil
}

func validateDay(day models.DayHours) error {
	if (day.Start == "") != (day.End == "") {
		return fmt.Errorf("start and end must be set together")
	}
	if len(day.Shifts) > 0 && day.Start != "" {
		return fmt.Errorf("use either shifts or start/end, not both")
	}
	if day.Enabled && len(schedule.NormalizeDay(day)) == 0 {
		return fmt.Errorf("enabled day needs at least one shift")
	}
	return schedule.ValidateShifts(schedule.NormalizeDay(day))
}

// StaffModels converts the configured staff into weekly templates with the
// legacy start/end shape already normalized.
func (c *SchedulesConfig) StaffModels() []models.Staff {
	result := make([]models.Staff, 0, len(c.Staff))
	for _, s := range c.Staff {
		wh := make(models.WorkingHours, len(s.WorkingHours))
		for key, day := range s.WorkingHours {
			wd, ok := ParseWeekday(key)
			if !ok {
				continue
			}
			wh[wd] = models.DayHours{Enabled: day.Enabled, Shifts: schedule.NormalizeDay(day)}
		}
		result = append(result, models.Staff{ID: s.ID, Name: s.Name, WorkingHours: wh})
	}
	return result
}

// OverrideModels returns the configured overrides followed by holidays as global day-off overrides.
// An explicit global override on a holiday date wins.
func (c *SchedulesConfig) OverrideModels() []models.ScheduleOverride {
	result := make([]models.ScheduleOverride, 0, len(c.Overrides)+len(c.Holidays))
	globals := make(map[string]bool)

	for _, o := range c.Overrides {
		date, err := models.ParseDate(o.Date)
		if err != nil {
			continue
		}
		if o.StaffID == nil {
			globals[o.Date] = true
		}
		result = append(result, models.ScheduleOverride{
			Date:     date,
			StaffID:  o.StaffID,
			IsDayOff: o.DayOff,
			Shifts:   o.Shifts,
			Note:     o.Note,
		})
	}

	for _, h := range c.Holidays {
		date, err := models.ParseDate(h.Date)
		if err != nil || globals[h.Date] {
			continue
		}
		globals[h.Date] = true
		result = append(result, models.ScheduleOverride{Date: date, IsDayOff: true, Note: h.Name})
	}
	return result
}
