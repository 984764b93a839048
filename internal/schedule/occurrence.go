package schedule

import (
	"time"

	"djbooking/internal/models"
)

// maxMonthResets bounds the search for week numbers that no month can produce.
// 28 years covers every weekday/month-length combination of the Gregorian calendar.
const maxMonthResets = 28 * 12

// OccursOn reports whether date is an occurrence of the recurring booking.
func OccursOn(b *models.Booking, date time.Time) bool {
	return date.Weekday() == b.DayOfWeek && WeekOfMonth(date) == b.WeekNumber
}

// NextOccurrence returns the first occurrence on or after from's calendar day, with the
// booking's time slot applied as time of day. An unparsable slot resolves to midnight.
// The returned instant may precede from when from falls on the occurrence day after the slot.
func NextOccurrence(b *models.Booking, from time.Time) time.Time {
	current := firstWeekdayOnOrAfter(dateOf(from), b.DayOfWeek)

	resets := 0
	for WeekOfMonth(current) != b.WeekNumber {
		next := addDays(current, 7)
		if next.Month() == current.Month() {
			current = next
			continue
		}

		resets++
		if resets > maxMonthResets {
			// no month has this bucket for the weekday
			current = firstWeekdayOnOrAfter(dateOf(from), b.DayOfWeek)
			break
		}
		firstOfMonth := time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, next.Location())
		current = firstWeekdayOnOrAfter(firstOfMonth, b.DayOfWeek)
	}

	return atSlot(current, b.TimeSlot)
}

// Occurrences lists every occurrence whose calendar day falls within [from, to].
func Occurrences(b *models.Booking, from, to time.Time) []time.Time {
	var out []time.Time
	last := dateOf(to)
	cursor := dateOf(from)

	for !cursor.After(last) {
		next := NextOccurrence(b, cursor)
		nextDay := dateOf(next)
		if nextDay.After(last) || !OccursOn(b, nextDay) {
			break
		}
		out = append(out, next)
		cursor = addDays(nextDay, 1)
	}
	return out
}

func firstWeekdayOnOrAfter(date time.Time, weekday time.Weekday) time.Time {
	shift := (int(weekday) - int(date.Weekday()) + 7) % 7
	return addDays(date, shift)
}

func atSlot(date time.Time, slot string) time.Time {
	d, ok := parseSlot(slot)
	if !ok {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second), 0, date.Location())
}
