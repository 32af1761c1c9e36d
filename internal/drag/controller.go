package drag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/slots"

	"github.com/rs/zerolog"
)

var (
	ErrConflict          = errors.New("drag: target slot conflicts with another booking")
	ErrInvalidTransition = errors.New("drag: invalid state transition")
	ErrNoActiveDrag      = errors.New("drag: no active drag")
	ErrBookingNotFound   = errors.New("drag: booking not found")
	ErrNoColumns         = errors.New("drag: calendar has no day columns")
	ErrNotActive         = errors.New("drag: booking is not active")
)

// State represents the current state of the drag pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateDragging   State = "dragging"
	StatePreviewing State = "previewing"
	StateCommitted  State = "committed"
	StateCancelled  State = "cancelled"
)

var transitions = map[State][]State{
	StateIdle:       {StateDragging},
	StateDragging:   {StatePreviewing, StateCancelled},
	StatePreviewing: {StatePreviewing, StateCommitted, StateCancelled},
	StateCommitted:  {StateIdle},
	StateCancelled:  {StateIdle},
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Rescheduler writes a new (date, time) onto an existing booking.
type Rescheduler interface {
	Reschedule(ctx context.Context, intent models.RescheduleIntent) error
}

// Outcome is the result of a release.
type Outcome struct {
	State  State
	NoOp   bool
	Intent *models.RescheduleIntent
	// Done receives the background write result once, then closes. Nil unless a write was issued.
	Done <-chan error
}

// Candidate is a computed preview that has not been applied yet.
type Candidate struct {
	Generation uint64
	Session    Session
	Preview    Preview
}

// Controller drives one drag gesture at a time over a set of day columns.
type Controller struct {
	layout      Layout
	rescheduler Rescheduler
	logger      zerolog.Logger
	onError     func(models.RescheduleIntent, error)
	now         func() time.Time

	mu         sync.Mutex
	state      State
	columns    []time.Time
	bookings   []models.Booking
	rect       Rect
	session    *Session
	generation uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorHandler sets a hook called when a background reschedule fails and was rolled back.
func WithErrorHandler(fn func(models.RescheduleIntent, error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller for the given layout and visible day columns.
// columns[i] is the date of semantic column i.
func NewController(layout Layout, columns []time.Time, bookings []models.Booking, r Rescheduler, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		layout:      layout,
		rescheduler: r,
		logger:      logger.With().Str("component", "drag").Logger(),
		now:         time.Now,
		state:       StateIdle,
		columns:     append([]time.Time(nil), columns...),
		bookings:    append([]models.Booking(nil), bookings...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the active session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Bookings returns the controller's local view of bookings, including optimistic updates.
func (c *Controller) Bookings() []models.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Booking(nil), c.bookings...)
}

// SetBookings replaces the local booking view. Ignored while a drag is active.
func (c *Controller) SetBookings(bookings []models.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return
	}
	c.bookings = append([]models.Booking(nil), bookings...)
}

func (c *Controller) transition(to State) error {
	if !CanTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
	}
	c.state = to
	return nil
}

// PickUp starts dragging bookingID with the pointer at p inside the container rect.
func (c *Controller) PickUp(bookingID int64, p Point, rect Rect) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.columns) == 0 {
		return Session{}, ErrNoColumns
	}
	if c.state == StateCommitted || c.state == StateCancelled {
		_ = c.transition(StateIdle)
	}

	idx := c.indexOf(bookingID)
	if idx < 0 {
		return Session{}, ErrBookingNotFound
	}
	b := c.bookings[idx]
	if !b.Active() {
		return Session{}, fmt.Errorf("%w: booking %d is %s", ErrNotActive, bookingID, b.Status)
	}
	start, _, ok := b.Interval()
	if !ok {
		return Session{}, fmt.Errorf("drag: booking %d has no valid interval", bookingID)
	}

	if err := c.transition(StateDragging); err != nil {
		return Session{}, err
	}

	elementTop := Point{X: p.X, Y: c.layout.MinutesToPosition(start, rect.Top)}
	s := newSession(b, p, elementTop, c.now())
	c.session = &s
	c.rect = rect

	c.logger.Debug().
		Str("session_id", s.ID.String()).
		Int64("booking_id", bookingID).
		Msg("drag started")
	return s, nil
}

// Compute derives the preview for pointer p from a snapshot of the current state.
// Each call supersedes all earlier candidates.
func (c *Controller) Compute(p Point) (Candidate, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Candidate{}, ErrNoActiveDrag
	}
	c.generation++
	gen := c.generation
	s := c.session.Moved(p)
	columns := c.columns
	rect := c.rect
	bookings := append([]models.Booking(nil), c.bookings...)
	c.mu.Unlock()

	pos := s.ElementPosition()
	col, hhmm := c.layout.Target(Point{X: p.X, Y: pos.Y}, rect, len(columns))
	date := columns[col]

	dayBookings := slots.BookingsOn(date, s.Booking.StaffID, bookings)
	preview := Preview{
		Date:        date,
		Time:        hhmm,
		HasConflict: !slots.IsSlotAvailable(hhmm, s.Booking.DurationMinutes, dayBookings, s.Booking.ID),
	}
	return Candidate{Generation: gen, Session: s.WithPreview(preview, gen), Preview: preview}, nil
}

// Apply installs cand if it is still the latest computation. Stale candidates are
// discarded and reported as false.
func (c *Controller) Apply(cand Candidate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || cand.Session.ID != c.session.ID || cand.Generation != c.generation {
		return false
	}
	if err := c.transition(StatePreviewing); err != nil {
		return false
	}
	s := cand.Session
	c.session = &s
	return true
}

// Move computes and applies the preview for pointer p.
func (c *Controller) Move(p Point) (Preview, error) {
	cand, err := c.Compute(p)
	if err != nil {
		return Preview{}, err
	}
	if !c.Apply(cand) {
		return Preview{}, errStalePreview
	}
	return cand.Preview, nil
}

var errStalePreview = errors.New("drag: preview superseded")

// IsStale reports whether err says a preview was superseded by a newer move.
func IsStale(err error) bool { return errors.Is(err, errStalePreview) }

// Cancel aborts the active drag without touching the store.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoActiveDrag
	}
	if err := c.transition(StateCancelled); err != nil {
		return err
	}
	c.logger.Debug().Str("session_id", c.session.ID.String()).Msg("drag cancelled")
	c.session = nil
	metrics.IncDragOutcome("cancelled")
	return nil
}

// Release finishes the drag using the last applied preview. A release onto the
// original position is a no-op, a conflicting one returns ErrConflict. Otherwise the
// local bookings are updated at once and the write runs in the background; on failure
// the previous booking is restored unless a later drag has moved it since.
func (c *Controller) Release(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Outcome{}, ErrNoActiveDrag
	}
	s := *c.session

	if s.IsNoOp() {
		if err := c.transition(StateCancelled); err != nil {
			return Outcome{}, err
		}
		c.session = nil
		metrics.IncDragOutcome("noop")
		return Outcome{State: StateCancelled, NoOp: true}, nil
	}

	if s.Preview.HasConflict {
		if err := c.transition(StateCancelled); err != nil {
			return Outcome{}, err
		}
		c.session = nil
		metrics.IncDragOutcome("conflict")
		c.logger.Info().
			Int64("booking_id", s.Booking.ID).
			Str("date", models.DateKey(s.Preview.Date)).
			Str("time", s.Preview.Time).
			Msg("drop rejected: conflict")
		return Outcome{State: StateCancelled}, ErrConflict
	}

	if err := c.transition(StateCommitted); err != nil {
		return Outcome{}, err
	}
	c.session = nil

	intent := models.RescheduleIntent{
		BookingID: s.Booking.ID,
		NewDate:   s.Preview.Date,
		NewTime:   s.Preview.Time,
	}

	idx := c.indexOf(s.Booking.ID)
	var prior models.Booking
	if idx >= 0 {
		prior = c.bookings[idx]
		c.bookings[idx].Date = intent.NewDate
		c.bookings[idx].Time = intent.NewTime
	}
	metrics.IncDragOutcome("committed")

	done := make(chan error, 1)
	go c.write(ctx, intent, prior, idx >= 0, done)

	return Outcome{State: StateCommitted, Intent: &intent, Done: done}, nil
}

func (c *Controller) write(ctx context.Context, intent models.RescheduleIntent, prior models.Booking, hadLocal bool, done chan<- error) {
	defer close(done)

	var err error
	if c.rescheduler == nil {
		err = errors.New("drag: no rescheduler configured")
	} else {
		err = c.rescheduler.Reschedule(ctx, intent)
	}
	if err == nil {
		c.logger.Info().
			Int64("booking_id", intent.BookingID).
			Str("date", models.DateKey(intent.NewDate)).
			Str("time", intent.NewTime).
			Msg("booking rescheduled")
		done <- nil
		return
	}

	c.mu.Lock()
	if hadLocal {
		idx := c.indexOf(intent.BookingID)
		if idx >= 0 && c.bookings[idx].Date.Equal(intent.NewDate) && c.bookings[idx].Time == intent.NewTime {
			c.bookings[idx] = prior
		}
	}
	c.mu.Unlock()

	metrics.IncDragOutcome("rolled_back")
	c.logger.Error().Err(err).Int64("booking_id", intent.BookingID).Msg("reschedule failed, rolled back")
	if c.onError != nil {
		c.onError(intent, err)
	}
	done <- err
}

func (c *Controller) indexOf(bookingID int64) int {
	for i := range c.bookings {
		if c.bookings[i].ID == bookingID {
			return i
		}
	}
	return -1
}
