// Package schedule resolves venue opening hours and recurring bookings onto the calendar.
// Everything here is pure and safe for concurrent use.
package schedule

import "time"

// WeekOfMonth buckets a date into 7-day bands aligned so the 1st of the month is always week 1.
// Sunday is the first day of a band.
func WeekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	offset := int(first.Weekday())
	return (t.Day()+offset-1)/7 + 1
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func addDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, t.Location())
}
