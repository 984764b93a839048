package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"djbooking/internal/domain"
	"djbooking/internal/events"
	"djbooking/internal/metrics"
	"djbooking/internal/models"
	"djbooking/internal/schedule"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const reminderKeyPrefix = "reminder:sent:"

// BookingLister is the slice of the repository the reminder worker reads.
type BookingLister interface {
	ListBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
}

// ReminderWorker publishes booking_upcoming once per confirmed booking occurrence
// when the occurrence enters the lead window.
type ReminderWorker struct {
	bookings    BookingLister
	publisher   domain.EventPublisher
	redis       *redis.Client
	retryPolicy RetryPolicy
	interval    time.Duration
	lead        time.Duration
	location    *time.Location
	logger      zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu   sync.Mutex
	sent map[string]time.Time // used when redis is nil
}

type ReminderOptions struct {
	Interval time.Duration
	Lead     time.Duration
	Location *time.Location
	Retry    RetryPolicy
}

// NewReminderWorker builds a worker with sane defaults. redisClient may be nil; deduplication then
// lives in memory and does not survive restarts.
func NewReminderWorker(bookings BookingLister, publisher domain.EventPublisher, redisClient *redis.Client, opts ReminderOptions, logger *zerolog.Logger) *ReminderWorker {
	if opts.Interval <= 0 {
		opts.Interval = models.DefaultReminderInterval * time.Second
	}
	if opts.Lead <= 0 {
		opts.Lead = models.DefaultReminderLead * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry.MaxRetries = 3
	}
	if opts.Retry.InitialDelay == 0 {
		opts.Retry.InitialDelay = time.Second
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = 30 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "reminders").Logger()
	}

	return &ReminderWorker{
		bookings:    bookings,
		publisher:   publisher,
		redis:       redisClient,
		retryPolicy: opts.Retry,
		interval:    opts.Interval,
		lead:        opts.Lead,
		location:    opts.Location,
		logger:      l,
		now:         time.Now,
		sleep:       sleepContext,
		sent:        make(map[string]time.Time),
	}
}

// Start runs a tick immediately and then on every interval until ctx is done.
func (w *ReminderWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Dur("lead", w.lead).Msg("reminder worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("reminder tick failed")
		}
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("reminder worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick publishes reminders that are due and returns how many were published.
func (w *ReminderWorker) Tick(ctx context.Context) (int, error) {
	now := w.now().In(w.location)
	w.forgetPast(now)

	bookings, err := w.bookings.ListBookingsByStatus(ctx, models.StatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("list confirmed bookings: %w", err)
	}

	published := 0
	for _, b := range bookings {
		at := schedule.NextOccurrence(b, now)
		if at.Before(now) {
			// today's slot already started
			at = schedule.NextOccurrence(b, now.AddDate(0, 0, 1))
		}
		if !schedule.OccursOn(b, at) || at.Sub(now) > w.lead {
			continue
		}

		key := fmt.Sprintf("%s%d:%d", reminderKeyPrefix, b.ID, at.Unix())
		claimed, err := w.claim(ctx, key, at.Sub(now)+time.Hour)
		if err != nil {
			w.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to claim reminder")
			continue
		}
		if !claimed {
			continue
		}

		occursAt := at
		payload := events.BookingEventPayload{
			BookingID:          b.ID,
			DJUsername:         b.DJUsername,
			VenueID:            b.VenueID,
			VenueOwnerUsername: b.VenueOwnerUsername,
			DayOfWeek:          b.DayOfWeek.String(),
			WeekNumber:         b.WeekNumber,
			TimeSlot:           b.TimeSlot,
			Status:             b.Status,
			OccursAt:           &occursAt,
			ChangedBy:          "reminder",
		}
		err = w.retryPolicy.Do(ctx, w.sleep, func() error {
			return w.publisher.PublishJSON(events.EventBookingUpcoming, payload)
		})
		if err != nil {
			w.logger.Error().Err(err).Int64("booking_id", b.ID).Time("occurs_at", at).Msg("reminder publish failed")
			w.release(ctx, key)
			continue
		}

		metrics.IncReminder()
		published++
		w.logger.Info().Int64("booking_id", b.ID).Str("dj", b.DJUsername).Time("occurs_at", at).Msg("reminder published")
	}
	return published, nil
}

func (w *ReminderWorker) claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if w.redis != nil {
		ok, err := w.redis.SetNX(ctx, key, 1, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("redis setnx: %w", err)
		}
		return ok, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.sent[key]; ok {
		return false, nil
	}
	w.sent[key] = w.now().Add(ttl)
	return true, nil
}

func (w *ReminderWorker) release(ctx context.Context, key string) {
	if w.redis != nil {
		if err := w.redis.Del(ctx, key).Err(); err != nil {
			w.logger.Warn().Err(err).Str("key", key).Msg("failed to release reminder claim")
		}
		return
	}
	w.mu.Lock()
	delete(w.sent, key)
	w.mu.Unlock()
}

func (w *ReminderWorker) forgetPast(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, expires := range w.sent {
		if now.After(expires) {
			delete(w.sent, k)
		}
	}
}
