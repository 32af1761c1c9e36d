package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookcal/internal/events"
	"bookcal/internal/models"
	"bookcal/internal/slots"
	"bookcal/internal/waitlist"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) BookingsForStaff(ctx context.Context, staffID int64, date time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, staffID, date)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookings) BookingsForStaffBetween(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, staffID, from, to)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookings) MoveBooking(ctx context.Context, intent models.RescheduleIntent) error {
	return m.Called(ctx, intent).Error(0)
}

func (m *mockBookings) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type mockSchedules struct {
	mock.Mock
}

func (m *mockSchedules) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Staff), args.Error(1)
}

func (m *mockSchedules) ListOverrides(ctx context.Context, date time.Time) ([]models.ScheduleOverride, error) {
	args := m.Called(ctx, date)
	return args.Get(0).([]models.ScheduleOverride), args.Error(1)
}

func (m *mockSchedules) ListOverridesBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleOverride, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.ScheduleOverride), args.Error(1)
}

type mockOverrides struct {
	mock.Mock
}

func (m *mockOverrides) UpsertOverride(ctx context.Context, o *models.ScheduleOverride) error {
	return m.Called(ctx, o).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) InvalidateOverrides(ctx context.Context, date time.Time) {
	m.Called(ctx, date)
}

type recordingPublisher struct {
	freed []events.FreedInterval
}

func (p *recordingPublisher) PublishFreed(_ context.Context, f events.FreedInterval) {
	p.freed = append(p.freed, f)
}

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) OnSlotFreed(ctx context.Context, date time.Time, start, end string) (waitlist.Result, error) {
	args := m.Called(ctx, date, start, end)
	return args.Get(0).(waitlist.Result), args.Error(1)
}

var (
	monday  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

func booking(id int64, date time.Time, start string, duration int, status models.BookingStatus) *models.Booking {
	return &models.Booking{ID: id, StaffID: 1, Date: date, Time: start, DurationMinutes: duration, Status: status}
}

func newBookingService(b *mockBookings, o *mockOverrides, c CacheInvalidator) (*BookingService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewBookingService(b, o, c, pub, zerolog.Nop()), pub
}

func TestCancelBooking_PublishesFreedInterval(t *testing.T) {
	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(5)).Return(booking(5, monday, "10:00", 60, models.StatusConfirmed), nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(5), models.StatusCancelled).Return(nil)

	svc, pub := newBookingService(store, nil, nil)
	b, err := svc.CancelBooking(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, []events.FreedInterval{{Date: monday, Start: "10:00", End: "11:00", Reason: events.ReasonCancelled}}, pub.freed)
	store.AssertExpectations(t)
}

func TestCancelBooking_Rejects(t *testing.T) {
	notFound := errors.New("not found")

	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(1)).Return(booking(1, monday, "10:00", 60, models.StatusCancelled), nil)
	store.On("GetBooking", mock.Anything, int64(2)).Return(nil, notFound)

	svc, pub := newBookingService(store, nil, nil)

	_, err := svc.CancelBooking(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = svc.CancelBooking(context.Background(), 2)
	assert.ErrorIs(t, err, notFound)

	store.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.freed)
}

func TestRescheduleBooking_Conflict(t *testing.T) {
	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(1)).Return(booking(1, monday, "09:00", 60, models.StatusConfirmed), nil)
	store.On("BookingsForStaff", mock.Anything, int64(1), tuesday).Return([]models.Booking{
		*booking(2, tuesday, "10:00", 60, models.StatusConfirmed),
	}, nil)

	svc, pub := newBookingService(store, nil, nil)
	_, err := svc.RescheduleBooking(context.Background(), models.RescheduleIntent{BookingID: 1, NewDate: tuesday, NewTime: "10:30"})

	assert.ErrorIs(t, err, ErrSlotTaken)
	store.AssertNotCalled(t, "MoveBooking", mock.Anything, mock.Anything)
	assert.Empty(t, pub.freed)
}

func TestRescheduleBooking_MovesAndPublishesVacated(t *testing.T) {
	own := booking(1, monday, "09:00", 60, models.StatusPendingApproval)
	intent := models.RescheduleIntent{BookingID: 1, NewDate: monday, NewTime: "09:30"}

	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(1)).Return(own, nil)
	// The booking overlaps its own target and must not block itself.
	store.On("BookingsForStaff", mock.Anything, int64(1), monday).Return([]models.Booking{
		*own,
		*booking(3, monday, "11:00", 30, models.StatusConfirmed),
	}, nil)
	store.On("MoveBooking", mock.Anything, intent).Return(nil)

	svc, pub := newBookingService(store, nil, nil)
	moved, err := svc.RescheduleBooking(context.Background(), intent)

	require.NoError(t, err)
	assert.Equal(t, "09:30", moved.Time)
	assert.Equal(t, []events.FreedInterval{{Date: monday, Start: "09:00", End: "10:00", Reason: events.ReasonRescheduled}}, pub.freed)
	store.AssertExpectations(t)
}

func TestRescheduleBooking_Validation(t *testing.T) {
	store := new(mockBookings)
	store.On("GetBooking", mock.Anything, int64(9)).Return(booking(9, monday, "09:00", 60, models.StatusCompleted), nil)
	store.On("GetBooking", mock.Anything, int64(8)).Return(booking(8, monday, "09:00", 60, models.StatusConfirmed), nil)
	svc, _ := newBookingService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.RescheduleBooking(ctx, models.RescheduleIntent{BookingID: 1, NewDate: monday, NewTime: "9am"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RescheduleBooking(ctx, models.RescheduleIntent{BookingID: 1, NewTime: "09:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.Reschedule(ctx, models.RescheduleIntent{BookingID: 9, NewDate: tuesday, NewTime: "10:00"})
	assert.ErrorIs(t, err, ErrNotActive)

	// Same place is a no-op without a write.
	b, err := svc.RescheduleBooking(ctx, models.RescheduleIntent{BookingID: 8, NewDate: monday, NewTime: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", b.Time)
	store.AssertNotCalled(t, "MoveBooking", mock.Anything, mock.Anything)
}

func TestSetOverride(t *testing.T) {
	staffID := int64(1)
	extra := &models.ScheduleOverride{
		Date:    monday,
		StaffID: &staffID,
		Shifts:  []models.Shift{{Start: "08:00", End: "12:00"}, {Start: "13:00", End: "15:00"}},
	}
	dayOff := &models.ScheduleOverride{Date: tuesday, IsDayOff: true}

	overrides := new(mockOverrides)
	overrides.On("UpsertOverride", mock.Anything, extra).Return(nil)
	overrides.On("UpsertOverride", mock.Anything, dayOff).Return(nil)
	cache := new(mockCache)
	cache.On("InvalidateOverrides", mock.Anything, monday).Once()
	cache.On("InvalidateOverrides", mock.Anything, tuesday).Once()

	svc, pub := newBookingService(nil, overrides, cache)
	ctx := context.Background()

	require.NoError(t, svc.SetOverride(ctx, extra))
	require.NoError(t, svc.SetOverride(ctx, dayOff))

	assert.Equal(t, []events.FreedInterval{
		{Date: monday, Start: "08:00", End: "12:00", Reason: events.ReasonOverride},
		{Date: monday, Start: "13:00", End: "15:00", Reason: events.ReasonOverride},
	}, pub.freed)
	cache.AssertExpectations(t)
}

func TestSetOverride_Invalid(t *testing.T) {
	overrides := new(mockOverrides)
	svc, _ := newBookingService(nil, overrides, nil)
	ctx := context.Background()

	tests := []*models.ScheduleOverride{
		{Shifts: []models.Shift{{Start: "09:00", End: "10:00"}}},
		{Date: monday, IsDayOff: true, Shifts: []models.Shift{{Start: "09:00", End: "10:00"}}},
		{Date: monday, Shifts: []models.Shift{{Start: "09:00", End: "13:00"}, {Start: "12:00", End: "14:00"}}},
		{Date: monday, Shifts: []models.Shift{{Start: "11:00", End: "10:00"}}},
	}
	for _, o := range tests {
		assert.ErrorIs(t, svc.SetOverride(ctx, o), ErrInvalidInput)
	}
	overrides.AssertNotCalled(t, "UpsertOverride", mock.Anything, mock.Anything)
}

func staffX() *models.Staff {
	return &models.Staff{
		ID:   1,
		Name: "X",
		WorkingHours: models.WorkingHours{
			time.Monday:  {Enabled: true, Shifts: []models.Shift{{Start: "09:00", End: "13:00"}, {Start: "14:00", End: "18:00"}}},
			time.Tuesday: {Enabled: true, Start: "10:00", End: "12:00"},
		},
	}
}

func TestAvailability_Slots(t *testing.T) {
	sched := new(mockSchedules)
	sched.On("GetStaff", mock.Anything, int64(1)).Return(staffX(), nil)
	sched.On("ListOverrides", mock.Anything, tuesday).Return([]models.ScheduleOverride{}, nil)
	store := new(mockBookings)
	store.On("BookingsForStaff", mock.Anything, int64(1), tuesday).Return([]models.Booking{
		*booking(2, tuesday, "10:30", 30, models.StatusConfirmed),
	}, nil)

	svc := NewAvailabilityService(sched, store, slots.NewCalculator(slots.Options{Interval: 30}))
	got, err := svc.Slots(context.Background(), 1, tuesday, 30, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "11:30"}, got)
}

func TestAvailability_Schedule(t *testing.T) {
	sunday := monday.AddDate(0, 0, 6)
	sched := new(mockSchedules)
	sched.On("GetStaff", mock.Anything, int64(1)).Return(staffX(), nil)
	sched.On("ListOverrides", mock.Anything, mock.Anything).Return([]models.ScheduleOverride{}, nil)

	svc := NewAvailabilityService(sched, new(mockBookings), slots.NewCalculator(slots.Options{}))

	eff, err := svc.Schedule(context.Background(), 1, tuesday)
	require.NoError(t, err)
	assert.True(t, eff.Enabled)
	assert.Equal(t, []models.Shift{{Start: "10:00", End: "12:00"}}, eff.Shifts)

	eff, err = svc.Schedule(context.Background(), 1, sunday)
	require.NoError(t, err)
	assert.False(t, eff.Enabled)
	assert.Empty(t, eff.Shifts)
}

func TestAvailability_DatesAndGrid(t *testing.T) {
	wednesday := tuesday.AddDate(0, 0, 1)
	sched := new(mockSchedules)
	sched.On("GetStaff", mock.Anything, int64(1)).Return(staffX(), nil)
	sched.On("ListOverridesBetween", mock.Anything, monday, wednesday).Return([]models.ScheduleOverride{
		{Date: monday, IsDayOff: true},
	}, nil)
	store := new(mockBookings)
	store.On("BookingsForStaffBetween", mock.Anything, int64(1), monday, wednesday).Return([]models.Booking{
		*booking(2, tuesday, "10:00", 60, models.StatusConfirmed),
	}, nil)

	svc := NewAvailabilityService(sched, store, slots.NewCalculator(slots.Options{Interval: 60}))

	dates, err := svc.Dates(context.Background(), 1, monday, wednesday, 60)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{tuesday}, dates)

	grid, err := svc.Grid(context.Background(), 1, monday, wednesday, 60)
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.True(t, grid[0].Closed)
	assert.Equal(t, []string{"11:00"}, grid[1].Slots)
	assert.True(t, grid[2].Closed, "no template entry for wednesday")
}

func TestAvailability_StaffNotFound(t *testing.T) {
	notFound := errors.New("not found")
	sched := new(mockSchedules)
	sched.On("GetStaff", mock.Anything, int64(7)).Return(nil, notFound)

	svc := NewAvailabilityService(sched, new(mockBookings), slots.NewCalculator(slots.Options{}))
	_, err := svc.Slots(context.Background(), 7, monday, 30, 0)
	assert.ErrorIs(t, err, notFound)

	ok, err := svc.HasSlotsInRange(context.Background(), 7, monday, 30, "09:00", "10:00")
	assert.ErrorIs(t, err, notFound)
	assert.False(t, ok)
}

func TestFreedIntervalHandler_OutlivesRequestDeadline(t *testing.T) {
	m := new(mockMatcher)
	m.On("OnSlotFreed", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), monday, "10:00", "11:00").
		Return(waitlist.Result{Notified: 1}, nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	handler := FreedIntervalHandler(m, zerolog.Nop())
	err := handler(ctx, events.Event{Type: events.TypeSlotFreed, Payload: events.FreedInterval{Date: monday, Start: "10:00", End: "11:00"}})
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestFreedIntervalHandler(t *testing.T) {
	m := new(mockMatcher)
	m.On("OnSlotFreed", mock.Anything, monday, "10:00", "11:00").Return(waitlist.Result{Notified: 1}, nil).Once()
	m.On("OnSlotFreed", mock.Anything, monday, "12:00", "13:00").Return(waitlist.Result{}, errors.New("db down")).Once()

	bus := events.NewEventBus(zerolog.Nop())
	handler := FreedIntervalHandler(m, zerolog.Nop())
	bus.Subscribe(events.TypeSlotFreed, handler)

	bus.PublishFreed(context.Background(), events.FreedInterval{Date: monday, Start: "10:00", End: "11:00", Reason: events.ReasonCancelled})
	m.AssertNumberOfCalls(t, "OnSlotFreed", 1)

	err := handler(context.Background(), events.Event{Type: events.TypeSlotFreed, Payload: events.FreedInterval{Date: monday, Start: "12:00", End: "13:00"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	err = handler(context.Background(), events.Event{Type: events.TypeSlotFreed, Payload: "nope"})
	assert.Error(t, err)
	m.AssertNumberOfCalls(t, "OnSlotFreed", 2)
}
