package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/slots"
	"bookcal/shared/export"
)

// ScheduleResponse is the body of GET /api/v1/staff/{id}/schedule.
type ScheduleResponse struct {
	StaffID int64          `json:"staff_id"`
	Date    string         `json:"date"`
	Enabled bool           `json:"enabled"`
	Shifts  []models.Shift `json:"shifts"`
}

// SlotsResponse is the body of GET /api/v1/staff/{id}/slots.
type SlotsResponse struct {
	StaffID  int64            `json:"staff_id"`
	Date     string           `json:"date"`
	Duration int              `json:"duration"`
	Slots    []slots.SlotInfo `json:"slots"`
}

// DatesResponse is the body of GET /api/v1/staff/{id}/dates.
type DatesResponse struct {
	StaffID int64    `json:"staff_id"`
	Dates   []string `json:"dates"`
	Period  struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleSchedule returns the effective schedule for a date.
// GET /api/v1/staff/{id}/schedule?date=YYYY-MM-DD
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule")

	staffID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eff, err := s.availability.Schedule(r.Context(), staffID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ScheduleResponse{
		StaffID: staffID,
		Date:    models.DateKey(date),
		Enabled: eff.Enabled,
		Shifts:  eff.Shifts,
	})
}

// handleSlots returns free slots for a service duration.
// GET /api/v1/staff/{id}/slots?date=YYYY-MM-DD&duration=30&ignore=12
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	staffID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration, err := queryDuration(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ignoreID int64
	if raw := r.URL.Query().Get("ignore"); raw != "" {
		ignoreID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ignore; expected booking id")
			return
		}
	}

	starts, err := s.availability.Slots(r.Context(), staffID, date, duration, ignoreID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		StaffID:  staffID,
		Date:     models.DateKey(date),
		Duration: duration,
		Slots:    slots.ToSlotInfo(starts, duration),
	})
}

// handleDates returns the dates with at least one free slot.
// GET /api/v1/staff/{id}/dates?from=YYYY-MM-DD&to=YYYY-MM-DD&duration=30
func (s *HTTPServer) handleDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("dates")

	staffID, from, to, duration, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	dates, err := s.availability.Dates(r.Context(), staffID, from, to, duration)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := DatesResponse{StaffID: staffID, Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, models.DateKey(d))
	}
	resp.Period.Start = models.DateKey(from)
	resp.Period.End = models.DateKey(to)
	writeJSON(w, http.StatusOK, resp)
}

// handleHasSlots reports whether a duration fits inside a time window.
// GET /api/v1/staff/{id}/has-slots?date=YYYY-MM-DD&from=HH:MM&to=HH:MM&duration=30
func (s *HTTPServer) handleHasSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("has_slots")

	staffID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration, err := queryDuration(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	fromTime, toTime := q.Get("from"), q.Get("to")
	if _, err := models.ParseClock(fromTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected HH:MM")
		return
	}
	if _, err := models.ParseClock(toTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected HH:MM")
		return
	}

	ok, err := s.availability.HasSlotsInRange(r.Context(), staffID, date, duration, fromTime, toTime)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

// handleAvailabilityExport streams an availability workbook.
// GET /api/v1/staff/{id}/availability.xlsx?from=YYYY-MM-DD&to=YYYY-MM-DD&duration=30
func (s *HTTPServer) handleAvailabilityExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_export")

	staffID, from, to, duration, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	days, err := s.availability.Grid(r.Context(), staffID, from, to, duration)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	wb := export.NewWorkbook()
	defer wb.Close()
	if err := wb.AddSheet(fmt.Sprintf("Staff %d %s", staffID, models.DateKey(from))); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := wb.WriteAvailability(days); err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := wb.Save(&buf); err != nil {
		s.writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("availability_%d_%s_%s.xlsx", staffID, models.DateKey(from), models.DateKey(to))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) rangeParams(w http.ResponseWriter, r *http.Request) (staffID int64, from, to time.Time, duration int, ok bool) {
	staffID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err = s.validateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration, err = queryDuration(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	return staffID, from, to, duration, true
}

func (s *HTTPServer) validateRange(rawFrom, rawTo string) (from, to time.Time, err error) {
	if rawFrom == "" || rawTo == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to are required")
	}
	from, err = models.ParseDate(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from format; expected YYYY-MM-DD")
	}
	to, err = models.ParseDate(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to format; expected YYYY-MM-DD")
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before or equal to to")
	}
	if days := int(to.Sub(from).Hours() / 24); days > s.cfg.MaxRangeDays {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", s.cfg.MaxRangeDays)
	}
	return from, to, nil
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format; expected YYYY-MM-DD", key)
	}
	return d, nil
}

func queryDuration(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("duration")
	if raw == "" {
		return 0, fmt.Errorf("duration is required")
	}
	d, err := strconv.Atoi(raw)
	if err != nil || d <= 0 || d > models.MinutesPerDay {
		return 0, fmt.Errorf("invalid duration; expected minutes")
	}
	return d, nil
}

// handleCalendarLayout returns the geometry drag clients render with.
// GET /api/v1/calendar/layout
func (s *HTTPServer) handleCalendarLayout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_layout")
	writeJSON(w, http.StatusOK, s.layout)
}
