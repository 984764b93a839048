package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenue_IsOpenOn(t *testing.T) {
	venue := NewVenue("Basement", "owner")
	venue.SetDaySchedule(time.Friday, DaySchedule{StartTime: "20:00", FinishTime: "02:00"})
	venue.ActiveWeeks = []int{1, 3}

	days := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	for _, day := range days {
		for week := 0; week <= 6; week++ {
			_, hasDay := venue.DaySchedules[day]
			want := hasDay && (week == 1 || week == 3)
			assert.Equal(t, want, venue.IsOpenOn(day, week), "day=%s week=%d", day, week)
		}
	}
}

func TestVenue_NilAndEmpty(t *testing.T) {
	var nilVenue *Venue
	assert.False(t, nilVenue.IsOpenOn(time.Monday, 1))
	_, ok := nilVenue.ScheduleFor(time.Monday)
	assert.False(t, ok)

	empty := &Venue{}
	assert.False(t, empty.IsOpenOn(time.Monday, 1))

	noWeeks := NewVenue("x", "y")
	noWeeks.SetDaySchedule(time.Monday, DaySchedule{StartTime: "18:00", FinishTime: "22:00"})
	noWeeks.ActiveWeeks = nil
	assert.False(t, noWeeks.IsOpenOn(time.Monday, 1))
}

func TestVenue_ScheduleForAndRemove(t *testing.T) {
	venue := &Venue{}
	venue.SetDaySchedule(time.Saturday, DaySchedule{StartTime: "18:00", FinishTime: "23:00"})

	s, ok := venue.ScheduleFor(time.Saturday)
	require.True(t, ok)
	assert.Equal(t, "18:00", s.StartTime)

	venue.RemoveDaySchedule(time.Saturday)
	_, ok = venue.ScheduleFor(time.Saturday)
	assert.False(t, ok)
}

func TestNewVenueDefaults(t *testing.T) {
	venue := NewVenue("Club", "owner")
	assert.True(t, venue.IsActive)
	assert.Equal(t, []int{1, 2, 3, 4}, venue.ActiveWeeks)
	assert.NotNil(t, venue.DaySchedules)
}

func TestVenueJSONRoundTripKeepsWeekdays(t *testing.T) {
	venue := NewVenue("Club", "owner")
	venue.SetDaySchedule(time.Sunday, DaySchedule{StartTime: "12:00", FinishTime: "16:00"})

	raw, err := json.Marshal(venue)
	require.NoError(t, err)

	var decoded Venue
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.IsOpenOn(time.Sunday, 2))
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Weekday
		wantErr bool
	}{
		{in: "Monday", want: time.Monday},
		{in: " fri ", want: time.Friday},
		{in: "0", want: time.Sunday},
		{in: "6", want: time.Saturday},
		{in: "7", wantErr: true},
		{in: "someday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekday(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBookingKeyAndStatus(t *testing.T) {
	b := &Booking{VenueID: 3, DayOfWeek: time.Friday, WeekNumber: 2, TimeSlot: "21:00", Status: StatusPending}
	assert.Equal(t, SlotKey{VenueID: 3, DayOfWeek: time.Friday, WeekNumber: 2, TimeSlot: "21:00"}, b.Key())
	assert.True(t, b.IsActive())

	b.Status = StatusCancelled
	assert.False(t, b.IsActive())

	assert.True(t, IsKnownStatus(StatusCompleted))
	assert.False(t, IsKnownStatus("rescheduled"))
}
