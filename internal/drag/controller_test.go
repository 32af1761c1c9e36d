package drag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"bookcal/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRescheduler struct {
	mock.Mock
}

func (m *MockRescheduler) Reschedule(ctx context.Context, intent models.RescheduleIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func day(d int) time.Time {
	return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC)
}

var rect = Rect{Left: 0, Top: 100, Width: 760, Height: 720}

// Columns are Mon 16 .. Sun 22, column 0 rendered rightmost.
func week() []time.Time {
	cols := make([]time.Time, 7)
	for i := range cols {
		cols[i] = day(16 + i)
	}
	return cols
}

func fixtureBookings() []models.Booking {
	return []models.Booking{
		{ID: 1, StaffID: 1, Date: day(16), Time: "09:00", DurationMinutes: 60, Status: models.StatusConfirmed},
		{ID: 2, StaffID: 1, Date: day(17), Time: "10:00", DurationMinutes: 60, Status: models.StatusConfirmed},
		{ID: 3, StaffID: 2, Date: day(17), Time: "12:00", DurationMinutes: 60, Status: models.StatusConfirmed},
		{ID: 4, StaffID: 1, Date: day(18), Time: "12:00", DurationMinutes: 60, Status: models.StatusCancelled},
	}
}

// pointerAt returns where the pointer sits when the dragged element's top is at
// (column, minutes) and the user grabbed it 10px below its top edge.
func pointerAt(l Layout, column, minutes int) Point {
	return Point{
		X: l.ColumnCenter(column, rect, 7),
		Y: l.MinutesToPosition(minutes, rect.Top) + 10,
	}
}

func newTestController(r Rescheduler, opts ...Option) *Controller {
	return NewController(DefaultLayout(), week(), fixtureBookings(), r, zerolog.New(io.Discard), opts...)
}

func TestFSMTransitions(t *testing.T) {
	tests := []struct {
		name        string
		from        State
		to          State
		shouldAllow bool
	}{
		{"idle to dragging", StateIdle, StateDragging, true},
		{"dragging to previewing", StateDragging, StatePreviewing, true},
		{"previewing to previewing", StatePreviewing, StatePreviewing, true},
		{"previewing to committed", StatePreviewing, StateCommitted, true},
		{"previewing to cancelled", StatePreviewing, StateCancelled, true},
		{"dragging to cancelled", StateDragging, StateCancelled, true},
		{"committed to idle", StateCommitted, StateIdle, true},
		{"cancelled to idle", StateCancelled, StateIdle, true},
		// Invalid transitions
		{"idle to committed", StateIdle, StateCommitted, false},
		{"dragging to committed", StateDragging, StateCommitted, false},
		{"committed to previewing", StateCommitted, StatePreviewing, false},
		{"idle to previewing", StateIdle, StatePreviewing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldAllow, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPickUp(t *testing.T) {
	c := newTestController(nil)
	l := DefaultLayout()

	s, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)

	assert.Equal(t, StateDragging, c.State())
	assert.NotEmpty(t, s.ID.String())
	assert.Equal(t, day(16), s.OriginalDate)
	assert.Equal(t, "09:00", s.OriginalTime)
	assert.InDelta(t, 10, s.Offset.Y, 0.001)
	assert.Nil(t, s.Preview)

	_, err = c.PickUp(2, pointerAt(l, 1, 600), rect)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = newTestController(nil).PickUp(99, Point{}, rect)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestPickUp_RejectsInactiveBooking(t *testing.T) {
	c := newTestController(nil)
	l := DefaultLayout()

	_, err := c.PickUp(4, pointerAt(l, 2, 720), rect)
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, StateIdle, c.State())
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestMove_PreviewUsesElementOffset(t *testing.T) {
	c := newTestController(nil)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)

	// Pointer at 11:00 + 10px means the element top is at 11:00.
	preview, err := c.Move(pointerAt(l, 2, 660))
	require.NoError(t, err)

	assert.Equal(t, StatePreviewing, c.State())
	assert.Equal(t, day(18), preview.Date)
	assert.Equal(t, "11:00", preview.Time)
	assert.False(t, preview.HasConflict)
}

func TestMove_ConflictPreview(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		name     string
		column   int
		minutes  int
		conflict bool
	}{
		{"onto other booking", 1, 600, true},
		{"overlapping its end", 1, 630, true},
		{"touching its end", 1, 660, false},
		{"other staff booking ignored", 1, 720, false},
		{"cancelled booking ignored", 2, 720, false},
		{"overlapping own original", 0, 570, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(nil)
			_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
			require.NoError(t, err)

			preview, err := c.Move(pointerAt(l, tt.column, tt.minutes))
			require.NoError(t, err)
			assert.Equal(t, tt.conflict, preview.HasConflict)
		})
	}
}

func TestRelease_ConflictRejectedWithoutWrite(t *testing.T) {
	r := new(MockRescheduler)
	c := newTestController(r)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	preview, err := c.Move(pointerAt(l, 1, 600))
	require.NoError(t, err)
	require.True(t, preview.HasConflict)

	outcome, err := c.Release(context.Background())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, StateCancelled, outcome.State)
	assert.Nil(t, outcome.Done)
	assert.Equal(t, StateCancelled, c.State())

	r.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything)
	assert.Equal(t, fixtureBookings(), c.Bookings())
}

func TestRelease_NoOp(t *testing.T) {
	r := new(MockRescheduler)
	c := newTestController(r)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 3, 700))
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 0, 540))
	require.NoError(t, err)

	outcome, err := c.Release(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.NoOp)
	r.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything)

	// Releasing without any move is a no-op too.
	_, err = c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	outcome, err = c.Release(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.NoOp)
}

func TestRelease_CommitsInBackground(t *testing.T) {
	r := new(MockRescheduler)
	want := models.RescheduleIntent{BookingID: 1, NewDate: day(17), NewTime: "12:00"}
	r.On("Reschedule", mock.Anything, want).Return(nil).Once()

	c := newTestController(r)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 1, 720))
	require.NoError(t, err)

	outcome, err := c.Release(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, outcome.State)
	require.NotNil(t, outcome.Intent)
	assert.Equal(t, want, *outcome.Intent)

	// Optimistic state is visible before the write lands.
	b := c.Bookings()[0]
	assert.Equal(t, day(17), b.Date)
	assert.Equal(t, "12:00", b.Time)

	require.NoError(t, <-outcome.Done)
	r.AssertExpectations(t)

	b = c.Bookings()[0]
	assert.Equal(t, day(17), b.Date)
	assert.Equal(t, "12:00", b.Time)
}

func TestRelease_RollbackOnStoreFailure(t *testing.T) {
	r := new(MockRescheduler)
	storeErr := errors.New("store unavailable")
	r.On("Reschedule", mock.Anything, mock.Anything).Return(storeErr).Once()

	var (
		hookIntent models.RescheduleIntent
		hookErr    error
	)
	c := newTestController(r, WithErrorHandler(func(intent models.RescheduleIntent, err error) {
		hookIntent = intent
		hookErr = err
	}))
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 4, 840))
	require.NoError(t, err)

	outcome, err := c.Release(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, <-outcome.Done, storeErr)
	assert.Equal(t, fixtureBookings(), c.Bookings())
	assert.ErrorIs(t, hookErr, storeErr)
	assert.Equal(t, int64(1), hookIntent.BookingID)
	assert.Equal(t, "14:00", hookIntent.NewTime)
	r.AssertExpectations(t)
}

func TestRelease_LateRollbackKeepsNewerMove(t *testing.T) {
	r := new(MockRescheduler)
	storeErr := errors.New("store down")
	gate := make(chan time.Time)
	first := models.RescheduleIntent{BookingID: 1, NewDate: day(16), NewTime: "11:00"}
	second := models.RescheduleIntent{BookingID: 1, NewDate: day(16), NewTime: "13:00"}
	r.On("Reschedule", mock.Anything, first).WaitUntil(gate).Return(storeErr).Once()
	r.On("Reschedule", mock.Anything, second).Return(nil).Once()

	c := newTestController(r)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 0, 660))
	require.NoError(t, err)
	slow, err := c.Release(context.Background())
	require.NoError(t, err)

	// Picked up again from its optimistic position while the first write is pending.
	_, err = c.PickUp(1, pointerAt(l, 0, 660), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 0, 780))
	require.NoError(t, err)
	fast, err := c.Release(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-fast.Done)

	close(gate)
	assert.ErrorIs(t, <-slow.Done, storeErr)

	b := c.Bookings()[0]
	assert.Equal(t, day(16), b.Date)
	assert.Equal(t, "13:00", b.Time, "failed older write must not undo the newer move")
	r.AssertExpectations(t)
}

func TestStalePreviewDiscarded(t *testing.T) {
	c := newTestController(nil)
	l := DefaultLayout()

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)

	older, err := c.Compute(pointerAt(l, 1, 600))
	require.NoError(t, err)
	newer, err := c.Compute(pointerAt(l, 2, 780))
	require.NoError(t, err)

	assert.True(t, c.Apply(newer))
	assert.False(t, c.Apply(older), "superseded preview must not be applied")

	s, ok := c.Session()
	require.True(t, ok)
	require.NotNil(t, s.Preview)
	assert.Equal(t, day(18), s.Preview.Date)
	assert.Equal(t, "13:00", s.Preview.Time)
	assert.Equal(t, newer.Generation, s.Generation)

	assert.True(t, IsStale(fmt.Errorf("move: %w", errStalePreview)))
	assert.False(t, IsStale(ErrConflict))
}

func TestSessionIsImmutable(t *testing.T) {
	c := newTestController(nil)
	l := DefaultLayout()

	picked, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 2, 660))
	require.NoError(t, err)

	assert.Nil(t, picked.Preview)
	assert.Equal(t, picked.TouchStart, picked.TouchCurrent)

	current, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, picked.ID, current.ID)
	assert.NotEqual(t, current.TouchStart, current.TouchCurrent)
}

func TestCancel(t *testing.T) {
	r := new(MockRescheduler)
	c := newTestController(r)
	l := DefaultLayout()

	assert.ErrorIs(t, c.Cancel(), ErrNoActiveDrag)

	_, err := c.PickUp(1, pointerAt(l, 0, 540), rect)
	require.NoError(t, err)
	_, err = c.Move(pointerAt(l, 3, 600))
	require.NoError(t, err)

	require.NoError(t, c.Cancel())
	assert.Equal(t, StateCancelled, c.State())
	_, ok := c.Session()
	assert.False(t, ok)

	_, err = c.Move(pointerAt(l, 3, 600))
	assert.ErrorIs(t, err, ErrNoActiveDrag)
	_, err = c.Release(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveDrag)

	// A new gesture can start after a cancel.
	_, err = c.PickUp(2, pointerAt(l, 1, 600), rect)
	require.NoError(t, err)
	assert.Equal(t, StateDragging, c.State())
	r.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything)
}
