package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"djbooking/internal/database"
	"djbooking/internal/domain"
	"djbooking/internal/events"
	"djbooking/internal/metrics"
	"djbooking/internal/models"
	"djbooking/internal/schedule"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo               domain.Repository
	generator          *schedule.Generator
	eventBus           domain.EventPublisher
	maxOccurrencesDays int
	location           *time.Location
	logger             *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	generator *schedule.Generator,
	eventBus domain.EventPublisher,
	maxOccurrencesDays int,
	location *time.Location,
	logger *zerolog.Logger,
) *BookingService {
	if maxOccurrencesDays <= 0 {
		maxOccurrencesDays = models.MaxOccurrencesWindowDays
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if generator == nil {
		generator = schedule.NewGenerator(logger)
	}
	return &BookingService{
		repo:               repo,
		generator:          generator,
		eventBus:           eventBus,
		maxOccurrencesDays: maxOccurrencesDays,
		location:           location,
		logger:             logger,
	}
}

// CreateBooking checks the request against the venue's schedule and stores it as pending.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	booking.DJUsername = strings.TrimSpace(booking.DJUsername)
	booking.TimeSlot = strings.TrimSpace(booking.TimeSlot)
	if booking.DJUsername == "" {
		return fmt.Errorf("%w: dj username is required", ErrValidation)
	}
	if booking.DayOfWeek < time.Sunday || booking.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: unknown weekday %d", ErrValidation, booking.DayOfWeek)
	}
	if booking.WeekNumber < 1 || booking.WeekNumber > 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidWeek, booking.WeekNumber)
	}

	venue, err := s.repo.GetVenue(ctx, booking.VenueID)
	if err != nil {
		return err
	}
	if !venue.IsActive {
		return ErrVenueInactive
	}
	if !venue.IsOpenOn(booking.DayOfWeek, booking.WeekNumber) {
		return ErrVenueClosed
	}
	if !containsSlot(s.generator.AvailableSlots(venue, booking.DayOfWeek), booking.TimeSlot) {
		return fmt.Errorf("%w: %q", ErrSlotNotOffered, booking.TimeSlot)
	}

	booking.VenueOwnerUsername = venue.OwnerUsername
	booking.Status = models.StatusPending

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncSlotConflict()
		}
		return err
	}

	metrics.IncBookingStatus(booking.Status)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("dj", booking.DJUsername).
		Int64("venue_id", booking.VenueID).
		Str("day", booking.DayOfWeek.String()).
		Int("week", booking.WeekNumber).
		Str("slot", booking.TimeSlot).
		Msg("booking created")
	s.publishEvent(events.EventBookingCreated, *booking, booking.DJUsername)
	return nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, version int64, by string) error {
	return s.SetStatus(ctx, bookingID, version, models.StatusConfirmed, by)
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID, version int64, by string) error {
	return s.SetStatus(ctx, bookingID, version, models.StatusCancelled, by)
}

func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, version int64, by string) error {
	return s.SetStatus(ctx, bookingID, version, models.StatusCompleted, by)
}

// SetStatus moves a booking to any known status; there is no transition table.
func (s *BookingService) SetStatus(ctx context.Context, bookingID, version int64, status, by string) error {
	if !models.IsKnownStatus(status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, version, status); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncSlotConflict()
		}
		return err
	}
	metrics.IncBookingStatus(status)

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("booking updated but reload failed")
		return nil
	}
	s.publishEvent(statusEvent(status), *booking, by)
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// NextOccurrence resolves the booking's next calendar instance on or after from, in the service timezone.
func (s *BookingService) NextOccurrence(ctx context.Context, bookingID int64, from time.Time) (*models.Occurrence, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	at := schedule.NextOccurrence(booking, from.In(s.location))
	return &models.Occurrence{
		BookingID: booking.ID,
		VenueID:   booking.VenueID,
		At:        at,
		Week:      schedule.WeekOfMonth(at),
	}, nil
}

func (s *BookingService) Occurrences(ctx context.Context, bookingID int64, from, to time.Time) ([]models.Occurrence, error) {
	from, to = from.In(s.location), to.In(s.location)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: window ends before it starts", ErrValidation)
	}
	if to.Sub(from) > time.Duration(s.maxOccurrencesDays)*24*time.Hour {
		return nil, fmt.Errorf("%w: at most %d days", ErrWindowTooLarge, s.maxOccurrencesDays)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	times := schedule.Occurrences(booking, from, to)
	out := make([]models.Occurrence, 0, len(times))
	for _, at := range times {
		out = append(out, models.Occurrence{BookingID: booking.ID, VenueID: booking.VenueID, At: at, Week: schedule.WeekOfMonth(at)})
	}
	return out, nil
}

func (s *BookingService) ListForDJ(ctx context.Context, djUsername string) ([]*models.Booking, error) {
	return s.repo.ListBookingsByDJ(ctx, strings.TrimSpace(djUsername))
}

func (s *BookingService) ListForVenue(ctx context.Context, venueID int64, includeCancelled bool) ([]*models.Booking, error) {
	return s.repo.ListBookingsByVenue(ctx, venueID, includeCancelled)
}

// Location is the timezone occurrences are resolved in.
func (s *BookingService) Location() *time.Location {
	return s.location
}

func (s *BookingService) publishEvent(eventType string, booking models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := BookingPayload(booking, nil)
	payload.ChangedBy = changedBy

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

// BookingPayload converts a booking into its event snapshot.
func BookingPayload(booking models.Booking, occursAt *time.Time) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:          booking.ID,
		DJUsername:         booking.DJUsername,
		VenueID:            booking.VenueID,
		VenueOwnerUsername: booking.VenueOwnerUsername,
		DayOfWeek:          booking.DayOfWeek.String(),
		WeekNumber:         booking.WeekNumber,
		TimeSlot:           booking.TimeSlot,
		Status:             booking.Status,
		OccursAt:           occursAt,
	}
}

func statusEvent(status string) string {
	switch status {
	case models.StatusConfirmed:
		return events.EventBookingConfirmed
	case models.StatusCancelled:
		return events.EventBookingCancelled
	case models.StatusCompleted:
		return events.EventBookingCompleted
	default:
		return events.EventBookingPending
	}
}

func containsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
