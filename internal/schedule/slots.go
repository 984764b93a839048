package schedule

import (
	"fmt"
	"time"

	"djbooking/internal/models"

	"github.com/rs/zerolog"
)

const (
	slotStep         = time.Hour
	maxSlotsPerHalf  = 24
	maxOvernightSlot = 48
)

// Generator expands a venue's day schedule into hourly slot labels.
type Generator struct {
	logger zerolog.Logger
}

func NewGenerator(logger *zerolog.Logger) *Generator {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "slots").Logger()
	}
	return &Generator{logger: l}
}

// Slots returns the slot labels for day. A day without hours yields no slots and no error;
// unparsable or out-of-range hours yield ErrInvalidSchedule.
func (g *Generator) Slots(venue *models.Venue, weekday time.Weekday) ([]string, error) {
	schedule, ok := venue.ScheduleFor(weekday)
	if !ok {
		return nil, nil
	}

	start, err := ParseTimeOfDay(schedule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrInvalidSchedule, schedule.StartTime)
	}
	finish, err := ParseTimeOfDay(schedule.FinishTime)
	if err != nil {
		return nil, fmt.Errorf("%w: finish %q", ErrInvalidSchedule, schedule.FinishTime)
	}
	if start < 0 || start >= day {
		return nil, fmt.Errorf("%w: start %q out of range", ErrInvalidSchedule, schedule.StartTime)
	}
	if finish < 0 || finish > day {
		return nil, fmt.Errorf("%w: finish %q out of range", ErrInvalidSchedule, schedule.FinishTime)
	}

	return hourlyLadder(start, finish), nil
}

// AvailableSlots is Slots with invalid schedules logged and treated as closed.
func (g *Generator) AvailableSlots(venue *models.Venue, weekday time.Weekday) []string {
	slots, err := g.Slots(venue, weekday)
	if err != nil {
		var venueID int64
		if venue != nil {
			venueID = venue.ID
		}
		g.logger.Warn().Err(err).Int64("venue_id", venueID).Str("day", weekday.String()).Msg("invalid day schedule, no slots")
		return []string{}
	}
	if slots == nil {
		return []string{}
	}
	return slots
}

func hourlyLadder(start, finish time.Duration) []string {
	var slots []string

	if finish >= start {
		for t := start; t < finish && len(slots) < maxSlotsPerHalf; t += slotStep {
			slots = append(slots, FormatSlot(t))
		}
		return slots
	}

	// overnight: start..midnight, then midnight..finish
	for t := start; t < day && len(slots) < maxSlotsPerHalf; t += slotStep {
		slots = append(slots, FormatSlot(t))
	}
	for t := time.Duration(0); t < finish && len(slots) < maxOvernightSlot; t += slotStep {
		slots = append(slots, FormatSlot(t))
	}
	return slots
}

// IsOvernight reports whether the schedule closes after midnight. Unparsable schedules are not overnight.
func IsOvernight(s models.DaySchedule) bool {
	start, err := ParseTimeOfDay(s.StartTime)
	if err != nil {
		return false
	}
	finish, err := ParseTimeOfDay(s.FinishTime)
	if err != nil {
		return false
	}
	return finish < start
}

// ValidateDaySchedule checks that both times parse and are in range.
func ValidateDaySchedule(s models.DaySchedule) error {
	v := &models.Venue{DaySchedules: map[time.Weekday]models.DaySchedule{time.Sunday: s}}
	_, err := (&Generator{logger: zerolog.Nop()}).Slots(v, time.Sunday)
	return err
}
