package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrInvalidSchedule = errors.New("invalid day schedule")
)

const day = 24 * time.Hour

// ParseTimeOfDay parses "H:mm", "HH:mm" or "HH:mm:ss" into an offset from midnight.
// Hours above 24 are rejected; callers decide whether 24:00 itself is allowed.
func ParseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || p[0] == '+' || p[0] == '-' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		values[i] = n
	}

	hours, minutes := values[0], values[1]
	seconds := 0
	if len(values) == 3 {
		seconds = values[2]
	}
	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	return d, nil
}

// FormatSlot renders an offset from midnight as "HH:mm", wrapping at 24h.
func FormatSlot(d time.Duration) string {
	d %= day
	if d < 0 {
		d += day
	}
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// parseSlot parses a booking time slot. Only [00:00, 24:00) is accepted.
func parseSlot(s string) (time.Duration, bool) {
	d, err := ParseTimeOfDay(s)
	if err != nil || d < 0 || d >= day {
		return 0, false
	}
	return d, true
}
