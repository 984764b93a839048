package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"djbooking/internal/database"
	"djbooking/internal/domain"
	"djbooking/internal/events"
	"djbooking/internal/models"
	"djbooking/internal/schedule"

	"github.com/rs/zerolog"
)

type VenueService struct {
	repo      domain.Repository
	generator *schedule.Generator
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
}

func NewVenueService(repo domain.Repository, generator *schedule.Generator, eventBus domain.EventPublisher, logger *zerolog.Logger) *VenueService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if generator == nil {
		generator = schedule.NewGenerator(logger)
	}
	return &VenueService{
		repo:      repo,
		generator: generator,
		eventBus:  eventBus,
		logger:    logger,
	}
}

func (s *VenueService) CreateVenue(ctx context.Context, venue *models.Venue) error {
	venue.Name = strings.TrimSpace(venue.Name)
	venue.OwnerUsername = strings.TrimSpace(venue.OwnerUsername)
	if venue.Name == "" {
		return fmt.Errorf("%w: venue name is required", ErrValidation)
	}
	if venue.OwnerUsername == "" {
		return fmt.Errorf("%w: venue owner is required", ErrValidation)
	}

	for day, ds := range venue.DaySchedules {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrValidation, day)
		}
		if err := schedule.ValidateDaySchedule(ds); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}

	if venue.ActiveWeeks == nil {
		venue.ActiveWeeks = models.DefaultActiveWeeks()
	}
	weeks, err := normalizeWeeks(venue.ActiveWeeks)
	if err != nil {
		return err
	}
	venue.ActiveWeeks = weeks
	venue.IsActive = true

	if err := s.repo.CreateVenue(ctx, venue); err != nil {
		return err
	}

	s.logger.Info().Int64("venue_id", venue.ID).Str("name", venue.Name).Msg("venue created")
	s.publishVenue(venue)
	return nil
}

func (s *VenueService) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	return s.repo.GetVenue(ctx, id)
}

func (s *VenueService) ListVenues(ctx context.Context, activeOnly bool) ([]*models.Venue, error) {
	return s.repo.ListVenues(ctx, activeOnly)
}

func (s *VenueService) SetDaySchedule(ctx context.Context, venueID, version int64, day time.Weekday, ds models.DaySchedule) (*models.Venue, error) {
	if err := schedule.ValidateDaySchedule(ds); err != nil {
		return nil, err
	}
	return s.mutate(ctx, venueID, version, func(v *models.Venue) error {
		v.SetDaySchedule(day, ds)
		return nil
	})
}

// RemoveDaySchedule closes the venue on day. Existing bookings on that day are kept.
func (s *VenueService) RemoveDaySchedule(ctx context.Context, venueID, version int64, day time.Weekday) (*models.Venue, error) {
	return s.mutate(ctx, venueID, version, func(v *models.Venue) error {
		v.RemoveDaySchedule(day)
		return nil
	})
}

func (s *VenueService) SetActiveWeeks(ctx context.Context, venueID, version int64, weeks []int) (*models.Venue, error) {
	normalized, err := normalizeWeeks(weeks)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, venueID, version, func(v *models.Venue) error {
		v.ActiveWeeks = normalized
		return nil
	})
}

func (s *VenueService) Deactivate(ctx context.Context, venueID int64) error {
	if err := s.repo.DeactivateVenue(ctx, venueID); err != nil {
		return err
	}
	venue, err := s.repo.GetVenue(ctx, venueID)
	if err == nil {
		s.publishVenue(venue)
	}
	return nil
}

func (s *VenueService) IsOpenOn(ctx context.Context, venueID int64, day time.Weekday, week int) (bool, error) {
	venue, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return false, err
	}
	return venue.IsActive && venue.IsOpenOn(day, week), nil
}

// Slots lists every generated slot of day for each active week, marking the ones already held.
func (s *VenueService) Slots(ctx context.Context, venueID int64, day time.Weekday) ([]models.SlotAvailability, error) {
	venue, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}

	labels := s.generator.AvailableSlots(venue, day)
	result := []models.SlotAvailability{}
	if len(labels) == 0 || !venue.IsActive {
		return result, nil
	}

	bookings, err := s.repo.ListBookingsByVenue(ctx, venueID, false)
	if err != nil {
		return nil, err
	}
	held := make(map[models.SlotKey]string, len(bookings))
	for _, b := range bookings {
		held[b.Key()] = b.DJUsername
	}

	weeks := append([]int(nil), venue.ActiveWeeks...)
	sort.Ints(weeks)
	for _, week := range weeks {
		for _, label := range labels {
			key := models.SlotKey{VenueID: venueID, DayOfWeek: day, WeekNumber: week, TimeSlot: label}
			dj, taken := held[key]
			result = append(result, models.SlotAvailability{
				Week:      week,
				TimeSlot:  label,
				Available: !taken,
				BookedBy:  dj,
			})
		}
	}
	return result, nil
}

// mutate applies fn to the stored venue if the caller saw the current version.
func (s *VenueService) mutate(ctx context.Context, venueID, version int64, fn func(*models.Venue) error) (*models.Venue, error) {
	venue, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if venue.Version != version {
		return nil, fmt.Errorf("%w: have %d, got %d", database.ErrConcurrentModification, venue.Version, version)
	}

	if err := fn(venue); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVenueWithVersion(ctx, venue, version); err != nil {
		return nil, err
	}

	s.publishVenue(venue)
	return venue, nil
}

func (s *VenueService) publishVenue(venue *models.Venue) {
	if s.eventBus == nil {
		return
	}

	days := make([]time.Weekday, 0, len(venue.DaySchedules))
	for d := range venue.DaySchedules {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}

	payload := events.VenueEventPayload{
		VenueID:     venue.ID,
		Name:        venue.Name,
		Days:        names,
		ActiveWeeks: venue.ActiveWeeks,
		IsActive:    venue.IsActive,
		Version:     venue.Version,
	}
	if err := s.eventBus.PublishJSON(events.EventVenueUpdated, payload); err != nil {
		s.logger.Error().Err(err).Int64("venue_id", venue.ID).Msg("publish venue event error")
	}
}

// normalizeWeeks validates, dedupes and sorts week-of-month numbers.
// An empty list is kept: the venue is then closed every week.
func normalizeWeeks(weeks []int) ([]int, error) {
	seen := make(map[int]bool, len(weeks))
	out := make([]int, 0, len(weeks))
	for _, w := range weeks {
		if w < 1 || w > 4 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidWeek, w)
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out, nil
}
