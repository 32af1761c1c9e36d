// Package waitlist matches freed calendar intervals against waiting-list entries
// and notifies the first entries that fit.
package waitlist

import (
	"context"
	"fmt"
	"time"

	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/slots"

	"github.com/rs/zerolog"
)

// ScanStep is the granularity, in minutes, of the fit search inside a freed interval.
const ScanStep = 15

const markTimeout = 5 * time.Second

// EntryStore reads and transitions waiting-list entries.
type EntryStore interface {
	// ListWaiting returns entries for date whose status is still waiting.
	ListWaiting(ctx context.Context, date time.Time) ([]models.WaitingListEntry, error)
	// MarkNotified moves an entry from waiting to notified only if it is still waiting.
	// It reports whether this call performed the transition.
	MarkNotified(ctx context.Context, id int64, matchedTime string, at time.Time) (bool, error)
}

// BookingStore reads bookings that occupy time.
type BookingStore interface {
	ActiveBookingsOn(ctx context.Context, date time.Time) ([]models.Booking, error)
}

// Offer is what a waiting client is told about.
type Offer struct {
	Date        time.Time
	Time        string
	ServiceName string
}

// Notifier delivers an offer to a contact.
type Notifier interface {
	NotifyWaitingEntry(ctx context.Context, contact models.Contact, offer Offer) error
}

// Claimer reserves an entry for one matcher run across processes.
type Claimer interface {
	Claim(ctx context.Context, entryID int64) (bool, error)
	Release(ctx context.Context, entryID int64) error
}

// Result summarizes one matcher run.
type Result struct {
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
}

// Matcher finds the first fitting slot per waiting entry inside a freed interval.
type Matcher struct {
	entries  EntryStore
	bookings BookingStore
	notifier Notifier
	claimer  Claimer
	order    func([]models.WaitingListEntry)
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithClaimer guards dispatch with a cross-process claim.
func WithClaimer(c Claimer) Option {
	return func(m *Matcher) { m.claimer = c }
}

// WithOrdering sorts entries before matching. Without it, store order is used.
func WithOrdering(fn func([]models.WaitingListEntry)) Option {
	return func(m *Matcher) { m.order = fn }
}

// WithClock overrides time.Now for NotifiedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// NewMatcher creates a matcher.
func NewMatcher(entries EntryStore, bookings BookingStore, notifier Notifier, logger zerolog.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		entries:  entries,
		bookings: bookings,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With().Str("component", "waitlist").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SortByRegistration is an ordering that serves first-registered entries first.
func SortByRegistration(entries []models.WaitingListEntry) {
	models.SortByRegistration(entries)
}

// OnSlotFreed notifies waiting entries for date that fit into [startTime, endTime).
// Entries disjoint from the interval are not candidates and are not counted.
func (m *Matcher) OnSlotFreed(ctx context.Context, date time.Time, startTime, endTime string) (Result, error) {
	var res Result

	start, err := models.ParseClock(startTime)
	if err != nil {
		return res, fmt.Errorf("freed interval start: %w", err)
	}
	end, err := models.ParseClock(endTime)
	if err != nil {
		return res, fmt.Errorf("freed interval end: %w", err)
	}
	if start >= end {
		return res, nil
	}

	entries, err := m.entries.ListWaiting(ctx, date)
	if err != nil {
		return res, fmt.Errorf("list waiting entries: %w", err)
	}
	if len(entries) == 0 {
		return res, nil
	}

	bookings, err := m.bookings.ActiveBookingsOn(ctx, date)
	if err != nil {
		return res, fmt.Errorf("list active bookings: %w", err)
	}

	if m.order != nil {
		m.order(entries)
	}

	for i := range entries {
		entry := &entries[i]
		if entry.Status != "" && entry.Status != models.WaitingStatusWaiting {
			continue
		}

		from, err := models.ParseClock(entry.FromTime)
		if err != nil {
			res.Skipped++
			continue
		}
		to, err := models.ParseClock(entry.ToTime)
		if err != nil {
			res.Skipped++
			continue
		}
		if end <= from || start >= to {
			continue
		}

		t, ok := FirstFit(max(start, from), min(end, to), entry.ServiceDurationMinutes, bookings)
		if !ok {
			res.Skipped++
			continue
		}

		if m.notify(ctx, date, entry, models.FormatClock(t)) {
			res.Notified++
		} else {
			res.Skipped++
		}
	}

	metrics.AddWaitlistResult(res.Notified, res.Skipped)
	m.logger.Info().
		Str("date", models.DateKey(date)).
		Str("from", startTime).
		Str("to", endTime).
		Int("notified", res.Notified).
		Int("skipped", res.Skipped).
		Msg("waiting list matched")
	return res, nil
}

// FirstFit returns the first t on a ScanStep grid from overlapStart such that
// [t, t+duration) lies inside [overlapStart, overlapEnd) and conflicts with no booking.
func FirstFit(overlapStart, overlapEnd, duration int, bookings []models.Booking) (int, bool) {
	if duration <= 0 {
		return 0, false
	}
	for t := overlapStart; t+duration <= overlapEnd; t += ScanStep {
		if slots.FitsAt(t, duration, bookings, 0) {
			return t, true
		}
	}
	return 0, false
}

func (m *Matcher) notify(ctx context.Context, date time.Time, entry *models.WaitingListEntry, hhmm string) bool {
	log := m.logger.With().Int64("entry_id", entry.ID).Str("time", hhmm).Logger()

	if m.claimer != nil {
		claimed, err := m.claimer.Claim(ctx, entry.ID)
		if err != nil {
			log.Warn().Err(err).Msg("claim failed")
			return false
		}
		if !claimed {
			log.Debug().Msg("entry claimed by another run")
			return false
		}
	}

	offer := Offer{Date: date, Time: hhmm, ServiceName: entry.ServiceName}
	if err := m.notifier.NotifyWaitingEntry(ctx, entry.Contact, offer); err != nil {
		log.Warn().Err(err).Msg("notify failed, entry stays waiting")
		if m.claimer != nil {
			if rerr := m.claimer.Release(ctx, entry.ID); rerr != nil {
				log.Warn().Err(rerr).Msg("release claim")
			}
		}
		return false
	}

	// The offer is out; record it even if the caller has given up.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	ok, err := m.entries.MarkNotified(markCtx, entry.ID, hhmm, m.now())
	if err != nil {
		log.Error().Err(err).Msg("mark notified")
		return false
	}
	if !ok {
		log.Warn().Msg("entry already notified by a concurrent run")
		return false
	}

	log.Info().Msg("waiting entry notified")
	return true
}
