package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"djbooking/internal/database"
	"djbooking/internal/events"
	"djbooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func friday(venue *models.Venue, dj string, week int, slot string) *models.Booking {
	return &models.Booking{
		DJUsername: dj,
		VenueID:    venue.ID,
		DayOfWeek:  time.Friday,
		WeekNumber: week,
		TimeSlot:   slot,
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	db := setupDB(t)
	bus := new(mockEventBus)
	svc := NewBookingService(db, nil, bus, 0, nil, testLogger())
	ctx := context.Background()
	venue := seedVenue(t, db, "Club")

	t.Run("Valid", func(t *testing.T) {
		bus.On("PublishJSON", events.EventBookingCreated, mock.MatchedBy(func(p events.BookingEventPayload) bool {
			return p.DJUsername == "dj_a" && p.DayOfWeek == "Friday" && p.Status == models.StatusPending
		})).Return(nil).Once()

		b := friday(venue, " dj_a ", 2, "21:00")
		b.Status = models.StatusConfirmed // ignored
		require.NoError(t, svc.CreateBooking(ctx, b))
		assert.NotZero(t, b.ID)
		assert.Equal(t, models.StatusPending, b.Status)
		assert.Equal(t, venue.OwnerUsername, b.VenueOwnerUsername)
		bus.AssertExpectations(t)
	})

	t.Run("OvernightSlot", func(t *testing.T) {
		bus.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil).Once()
		require.NoError(t, svc.CreateBooking(ctx, friday(venue, "dj_late", 2, "01:00")))
	})

	t.Run("SlotTaken", func(t *testing.T) {
		err := svc.CreateBooking(ctx, friday(venue, "dj_b", 2, "21:00"))
		assert.ErrorIs(t, err, database.ErrSlotTaken)
	})

	tests := []struct {
		name    string
		booking *models.Booking
		err     error
	}{
		{name: "MissingDJ", booking: friday(venue, "", 1, "21:00"), err: ErrValidation},
		{name: "WeekZero", booking: friday(venue, "dj", 0, "21:00"), err: ErrInvalidWeek},
		{name: "WeekFive", booking: friday(venue, "dj", 5, "21:00"), err: ErrInvalidWeek},
		{name: "ClosedDay", booking: &models.Booking{DJUsername: "dj", VenueID: venue.ID, DayOfWeek: time.Monday, WeekNumber: 1, TimeSlot: "21:00"}, err: ErrVenueClosed},
		{name: "SlotOutsideHours", booking: friday(venue, "dj", 1, "03:00"), err: ErrSlotNotOffered},
		{name: "SlotNotOnLadder", booking: friday(venue, "dj", 1, "21:30"), err: ErrSlotNotOffered},
		{name: "UnknownVenue", booking: &models.Booking{DJUsername: "dj", VenueID: 999, DayOfWeek: time.Friday, WeekNumber: 1, TimeSlot: "21:00"}, err: database.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.CreateBooking(ctx, tt.booking), tt.err)
		})
	}

	t.Run("InactiveWeek", func(t *testing.T) {
		v := models.NewVenue("FirstWeeksOnly", "o")
		v.ActiveWeeks = []int{1}
		v.SetDaySchedule(time.Friday, models.DaySchedule{StartTime: "20:00", FinishTime: "23:00"})
		require.NoError(t, db.CreateVenue(ctx, v))

		assert.ErrorIs(t, svc.CreateBooking(ctx, friday(v, "dj", 2, "20:00")), ErrVenueClosed)
	})

	t.Run("InactiveVenue", func(t *testing.T) {
		v := seedVenue(t, db, "Gone")
		require.NoError(t, db.DeactivateVenue(ctx, v.ID))
		assert.ErrorIs(t, svc.CreateBooking(ctx, friday(v, "dj", 1, "21:00")), ErrVenueInactive)
	})
}

func TestBookingService_StatusChanges(t *testing.T) {
	db := setupDB(t)
	bus := new(mockEventBus)
	svc := NewBookingService(db, nil, bus, 0, nil, testLogger())
	ctx := context.Background()
	venue := seedVenue(t, db, "Club")

	bus.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil)
	b := friday(venue, "dj_a", 1, "20:00")
	require.NoError(t, svc.CreateBooking(ctx, b))

	bus.On("PublishJSON", events.EventBookingConfirmed, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.BookingID == b.ID && p.ChangedBy == "owner"
	})).Return(nil).Once()
	require.NoError(t, svc.ConfirmBooking(ctx, b.ID, 1, "owner"))

	err := svc.CancelBooking(ctx, b.ID, 1, "owner")
	assert.ErrorIs(t, err, database.ErrConcurrentModification)

	bus.On("PublishJSON", events.EventBookingCompleted, mock.Anything).Return(errors.New("subscriber down")).Once()
	require.NoError(t, svc.CompleteBooking(ctx, b.ID, 2, "owner"), "publish failures are logged only")

	bus.On("PublishJSON", events.EventBookingCancelled, mock.Anything).Return(nil).Once()
	require.NoError(t, svc.CancelBooking(ctx, b.ID, 3, "dj_a"))

	assert.ErrorIs(t, svc.SetStatus(ctx, b.ID, 4, "archived", "x"), ErrUnknownStatus)

	// the cancelled slot can be taken by someone else
	require.NoError(t, svc.CreateBooking(ctx, friday(venue, "dj_b", 1, "20:00")))

	err = svc.SetStatus(ctx, b.ID, 4, models.StatusPending, "dj_a")
	assert.ErrorIs(t, err, database.ErrSlotTaken)

	got, err := svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	bus.AssertExpectations(t)
}

func TestBookingService_Occurrences(t *testing.T) {
	db := setupDB(t)
	loc := time.FixedZone("MSK", 3*60*60)
	svc := NewBookingService(db, nil, nil, 90, loc, testLogger())
	ctx := context.Background()
	venue := seedVenue(t, db, "Club")

	b := friday(venue, "dj_a", 2, "21:00")
	require.NoError(t, svc.CreateBooking(ctx, b))

	from := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	next, err := svc.NextOccurrence(ctx, b.ID, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.November, 13, 21, 0, 0, 0, loc), next.At)
	assert.Equal(t, 2, next.Week)
	assert.Equal(t, venue.ID, next.VenueID)

	list, err := svc.Occurrences(ctx, b.ID,
		time.Date(2026, time.October, 1, 0, 0, 0, 0, loc),
		time.Date(2026, time.December, 20, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 9, list[0].At.Day())
	assert.Equal(t, 13, list[1].At.Day())
	assert.Equal(t, 11, list[2].At.Day())

	_, err = svc.Occurrences(ctx, b.ID, from, from.AddDate(0, 0, 91))
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	_, err = svc.Occurrences(ctx, b.ID, from, from.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.NextOccurrence(ctx, 999, from)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestBookingService_Lists(t *testing.T) {
	db := setupDB(t)
	svc := NewBookingService(db, nil, nil, 0, nil, testLogger())
	ctx := context.Background()
	club := seedVenue(t, db, "Club")
	bar := seedVenue(t, db, "Bar")

	require.NoError(t, svc.CreateBooking(ctx, friday(club, "dj_a", 1, "20:00")))
	require.NoError(t, svc.CreateBooking(ctx, friday(bar, "dj_a", 3, "23:00")))
	require.NoError(t, svc.CreateBooking(ctx, friday(bar, "dj_b", 3, "22:00")))

	mine, err := svc.ListForDJ(ctx, "dj_a")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	atBar, err := svc.ListForVenue(ctx, bar.ID, false)
	require.NoError(t, err)
	require.Len(t, atBar, 2)
	assert.Equal(t, "22:00", atBar[0].TimeSlot)
	assert.Equal(t, time.UTC, svc.Location())
}
