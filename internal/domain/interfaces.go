package domain

import (
	"context"
	"time"

	"djbooking/internal/models"
)

// Repository is the persistence surface the services need.
type Repository interface {
	CreateVenue(ctx context.Context, venue *models.Venue) error
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	GetVenueByName(ctx context.Context, name string) (*models.Venue, error)
	ListVenues(ctx context.Context, activeOnly bool) ([]*models.Venue, error)
	UpdateVenueWithVersion(ctx context.Context, venue *models.Venue, fromVersion int64) error
	DeactivateVenue(ctx context.Context, id int64) error

	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindActiveBooking(ctx context.Context, key models.SlotKey) (*models.Booking, error)
	ListBookingsByVenue(ctx context.Context, venueID int64, includeCancelled bool) ([]*models.Booking, error)
	ListBookingsByDJ(ctx context.Context, djUsername string) ([]*models.Booking, error)
	ListBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id int64, version int64, status string) error

	Ping(ctx context.Context) error
}

// PresenceRepository tracks which users were seen recently.
type PresenceRepository interface {
	Touch(ctx context.Context, username string, ttl time.Duration) error
	Remove(ctx context.Context, username string) error
	IsOnline(ctx context.Context, username string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type VenueService interface {
	CreateVenue(ctx context.Context, venue *models.Venue) error
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	ListVenues(ctx context.Context, activeOnly bool) ([]*models.Venue, error)
	SetDaySchedule(ctx context.Context, venueID int64, version int64, day time.Weekday, schedule models.DaySchedule) (*models.Venue, error)
	RemoveDaySchedule(ctx context.Context, venueID int64, version int64, day time.Weekday) (*models.Venue, error)
	SetActiveWeeks(ctx context.Context, venueID int64, version int64, weeks []int) (*models.Venue, error)
	Deactivate(ctx context.Context, venueID int64) error
	IsOpenOn(ctx context.Context, venueID int64, day time.Weekday, week int) (bool, error)
	Slots(ctx context.Context, venueID int64, day time.Weekday) ([]models.SlotAvailability, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	ConfirmBooking(ctx context.Context, bookingID int64, version int64, by string) error
	CancelBooking(ctx context.Context, bookingID int64, version int64, by string) error
	CompleteBooking(ctx context.Context, bookingID int64, version int64, by string) error
	SetStatus(ctx context.Context, bookingID int64, version int64, status string, by string) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	NextOccurrence(ctx context.Context, bookingID int64, from time.Time) (*models.Occurrence, error)
	Occurrences(ctx context.Context, bookingID int64, from, to time.Time) ([]models.Occurrence, error)
	ListForDJ(ctx context.Context, djUsername string) ([]*models.Booking, error)
	ListForVenue(ctx context.Context, venueID int64, includeCancelled bool) ([]*models.Booking, error)
}

type PresenceService interface {
	Heartbeat(ctx context.Context, username string) error
	Leave(ctx context.Context, username string) error
	IsOnline(ctx context.Context, username string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}
