package service

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrInvalidWeek    = errors.New("week of month must be between 1 and 4")
	ErrVenueInactive  = errors.New("venue is not active")
	ErrVenueClosed    = errors.New("venue is closed on that day and week")
	ErrSlotNotOffered = errors.New("time slot is not offered by the venue")
	ErrUnknownStatus  = errors.New("unknown booking status")
	ErrWindowTooLarge = errors.New("occurrence window too large")
)
