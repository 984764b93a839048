package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DaySchedule is a venue's opening window for one weekday.
// FinishTime earlier than StartTime means the window runs past midnight.
type DaySchedule struct {
	StartTime  string `json:"start_time" yaml:"start_time"`   // "20:00"
	FinishTime string `json:"finish_time" yaml:"finish_time"` // "02:00"
}

type Venue struct {
	ID            int64                        `json:"id"`
	Name          string                       `json:"name"`
	Description   string                       `json:"description"`
	OwnerUsername string                       `json:"owner_username"`
	IsActive      bool                         `json:"is_active"`
	DaySchedules  map[time.Weekday]DaySchedule `json:"day_schedules"`
	ActiveWeeks   []int                        `json:"active_weeks"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
	Version       int64                        `json:"version"`
}

// NewVenue returns an active venue open on every default week with no configured days.
func NewVenue(name, ownerUsername string) *Venue {
	return &Venue{
		Name:          name,
		OwnerUsername: ownerUsername,
		IsActive:      true,
		DaySchedules:  make(map[time.Weekday]DaySchedule),
		ActiveWeeks:   DefaultActiveWeeks(),
	}
}

// IsOpenOn reports whether the venue has hours on day and is active in the given week of month.
func (v *Venue) IsOpenOn(day time.Weekday, weekOfMonth int) bool {
	if v == nil {
		return false
	}
	if _, ok := v.DaySchedules[day]; !ok {
		return false
	}
	return v.HasWeek(weekOfMonth)
}

func (v *Venue) ScheduleFor(day time.Weekday) (DaySchedule, bool) {
	if v == nil {
		return DaySchedule{}, false
	}
	s, ok := v.DaySchedules[day]
	return s, ok
}

func (v *Venue) HasWeek(week int) bool {
	if v == nil {
		return false
	}
	for _, w := range v.ActiveWeeks {
		if w == week {
			return true
		}
	}
	return false
}

// SetDaySchedule attaches or replaces the hours for a weekday.
func (v *Venue) SetDaySchedule(day time.Weekday, schedule DaySchedule) {
	if v.DaySchedules == nil {
		v.DaySchedules = make(map[time.Weekday]DaySchedule)
	}
	v.DaySchedules[day] = schedule
}

func (v *Venue) RemoveDaySchedule(day time.Weekday) {
	delete(v.DaySchedules, day)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts an English day name, a three-letter abbreviation or a number 0-6 (0 = Sunday).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if day, ok := weekdayNames[s]; ok {
		return day, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid weekday: %q", s)
	}
	return time.Weekday(n), nil
}
