// Package api exposes availability, rescheduling and waiting-list matching over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookcal/internal/config"
	"bookcal/internal/database"
	"bookcal/internal/drag"
	"bookcal/internal/models"
	"bookcal/internal/service"
	"bookcal/internal/waitlist"
	"bookcal/shared/export"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// MaxDaysRange is used when the config leaves max_range_days unset.
	MaxDaysRange = 90

	requestIDHeader = "X-Request-ID"
)

// Availability answers read queries.
type Availability interface {
	Schedule(ctx context.Context, staffID int64, date time.Time) (*models.EffectiveSchedule, error)
	Slots(ctx context.Context, staffID int64, date time.Time, duration int, ignoreID int64) ([]string, error)
	Dates(ctx context.Context, staffID int64, from, to time.Time, duration int) ([]time.Time, error)
	HasSlotsInRange(ctx context.Context, staffID int64, date time.Time, duration int, fromTime, toTime string) (bool, error)
	Grid(ctx context.Context, staffID int64, from, to time.Time, duration int) ([]export.DayAvailability, error)
}

// Bookings changes the calendar.
type Bookings interface {
	CancelBooking(ctx context.Context, id int64) (*models.Booking, error)
	RescheduleBooking(ctx context.Context, intent models.RescheduleIntent) (*models.Booking, error)
	SetOverride(ctx context.Context, o *models.ScheduleOverride) error
}

// Matcher runs the waiting-list match on demand.
type Matcher interface {
	OnSlotFreed(ctx context.Context, date time.Time, startTime, endTime string) (waitlist.Result, error)
}

// HTTPServer serves the calendar API.
type HTTPServer struct {
	availability Availability
	bookings     Bookings
	matcher      Matcher
	cfg          config.APIConfig
	layout       drag.Layout
	limiter      *clientLimiter
	logger       zerolog.Logger
	server       *http.Server
}

// NewHTTPServer builds the server and its routes. layout is served to calendar clients.
func NewHTTPServer(cfg config.APIConfig, layout drag.Layout, availability Availability, bookings Bookings, matcher Matcher, logger zerolog.Logger) *HTTPServer {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = MaxDaysRange
	}
	if layout.PixelsPerHour <= 0 {
		layout = drag.DefaultLayout()
	}
	s := &HTTPServer{
		availability: availability,
		bookings:     bookings,
		matcher:      matcher,
		cfg:          cfg,
		layout:       layout,
		limiter:      newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:       logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/calendar/layout", s.handleCalendarLayout)
	mux.HandleFunc("GET /api/v1/staff/{id}/schedule", s.handleSchedule)
	mux.HandleFunc("GET /api/v1/staff/{id}/slots", s.handleSlots)
	mux.HandleFunc("GET /api/v1/staff/{id}/dates", s.handleDates)
	mux.HandleFunc("GET /api/v1/staff/{id}/has-slots", s.handleHasSlots)
	mux.HandleFunc("GET /api/v1/staff/{id}/availability.xlsx", s.handleAvailabilityExport)
	mux.HandleFunc("POST /api/v1/bookings/{id}/reschedule", s.handleReschedule)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", s.handleCancel)
	mux.HandleFunc("PUT /api/v1/overrides", s.handleSetOverride)
	mux.HandleFunc("POST /api/v1/waitlist/match", s.handleWaitlistMatch)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		if !s.limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx := r.Context()
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
		}

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrSlotTaken), errors.Is(err, service.ErrNotActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
