package service

import (
	"context"
	"testing"
	"time"

	"bookcal/internal/drag"
	"bookcal/internal/events"
	"bookcal/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var calendarRect = drag.Rect{Left: 0, Top: 100, Width: 760, Height: 720}

func weekFrom(start time.Time) []time.Time {
	cols := make([]time.Time, 7)
	for i := range cols {
		cols[i] = start.AddDate(0, 0, i)
	}
	return cols
}

func grab(l drag.Layout, column, minutes int) drag.Point {
	return drag.Point{
		X: l.ColumnCenter(column, calendarRect, 7),
		Y: l.MinutesToPosition(minutes, calendarRect.Top) + 10,
	}
}

func TestDragCommit_GoesThroughBookingService(t *testing.T) {
	own := booking(1, monday, "09:00", 60, models.StatusConfirmed)
	want := models.RescheduleIntent{BookingID: 1, NewDate: tuesday, NewTime: "11:00"}

	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(1)).Return(own, nil)
	store.On("BookingsForStaff", mock.Anything, int64(1), tuesday).Return([]models.Booking{}, nil)
	store.On("MoveBooking", mock.Anything, want).Return(nil)

	svc, pub := newBookingService(store, nil, nil)
	l := drag.DefaultLayout()
	c := drag.NewController(l, weekFrom(monday), []models.Booking{*own}, svc, zerolog.Nop())

	_, err := c.PickUp(1, grab(l, 0, 540), calendarRect)
	require.NoError(t, err)
	_, err = c.Move(grab(l, 1, 660))
	require.NoError(t, err)

	outcome, err := c.Release(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-outcome.Done)

	assert.Equal(t, []events.FreedInterval{{Date: monday, Start: "09:00", End: "10:00", Reason: events.ReasonRescheduled}}, pub.freed)
	store.AssertExpectations(t)
}

func TestDragCommit_StaleViewRollsBack(t *testing.T) {
	own := booking(1, monday, "09:00", 60, models.StatusConfirmed)

	// Someone else took Tuesday 11:00 after the calendar was loaded.
	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(1)).Return(own, nil)
	store.On("BookingsForStaff", mock.Anything, int64(1), tuesday).Return([]models.Booking{
		*booking(7, tuesday, "11:00", 30, models.StatusPendingApproval),
	}, nil)

	svc, pub := newBookingService(store, nil, nil)
	l := drag.DefaultLayout()
	c := drag.NewController(l, weekFrom(monday), []models.Booking{*own}, svc, zerolog.Nop())

	_, err := c.PickUp(1, grab(l, 0, 540), calendarRect)
	require.NoError(t, err)
	preview, err := c.Move(grab(l, 1, 660))
	require.NoError(t, err)
	assert.False(t, preview.HasConflict)

	outcome, err := c.Release(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, <-outcome.Done, ErrSlotTaken)

	assert.Equal(t, []models.Booking{*own}, c.Bookings())
	assert.Empty(t, pub.freed)
	store.AssertNotCalled(t, "MoveBooking", mock.Anything, mock.Anything)
}
