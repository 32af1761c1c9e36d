package api

import (
	"net/http"

	"bookcal/internal/events"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
)

// RescheduleRequest is the body of POST /api/v1/bookings/{id}/reschedule.
type RescheduleRequest struct {
	Date string `json:"date"` // Format: YYYY-MM-DD
	Time string `json:"time"` // Format: HH:MM
}

// OverrideRequest is the body of PUT /api/v1/overrides.
type OverrideRequest struct {
	Date    string         `json:"date"`
	StaffID *int64         `json:"staff_id,omitempty"` // omitted: all staff
	DayOff  bool           `json:"day_off"`
	Shifts  []models.Shift `json:"shifts,omitempty"`
	Note    string         `json:"note,omitempty"`
}

// MatchRequest is the body of POST /api/v1/waitlist/match.
type MatchRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// handleReschedule moves a booking.
// POST /api/v1/bookings/{id}/reschedule
func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reschedule")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	b, err := s.bookings.RescheduleBooking(r.Context(), models.RescheduleIntent{
		BookingID: id,
		NewDate:   date,
		NewTime:   req.Time,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleCancel cancels a booking and frees its slot.
// POST /api/v1/bookings/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.bookings.CancelBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleSetOverride creates or replaces the override for a date.
// PUT /api/v1/overrides
func (s *HTTPServer) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_override")

	var req OverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	o := &models.ScheduleOverride{
		Date:     date,
		StaffID:  req.StaffID,
		IsDayOff: req.DayOff,
		Shifts:   req.Shifts,
		Note:     req.Note,
	}
	if err := s.bookings.SetOverride(r.Context(), o); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleWaitlistMatch runs the waiting-list match for a manually freed interval.
// POST /api/v1/waitlist/match
func (s *HTTPServer) handleWaitlistMatch(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_match")

	var req MatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if _, err := models.ParseClock(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected HH:MM")
		return
	}
	if _, err := models.ParseClock(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected HH:MM")
		return
	}

	res, err := s.matcher.OnSlotFreed(r.Context(), date, req.Start, req.End)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info().
		Str("reason", events.ReasonManual).
		Str("date", req.Date).
		Str("start", req.Start).
		Str("end", req.End).
		Int("notified", res.Notified).
		Msg("waiting list matched")
	writeJSON(w, http.StatusOK, res)
}
