package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"djbooking/internal/models"
)

const bookingColumns = `id, dj_username, venue_id, venue_owner_username, day_of_week,
                        week_number, time_slot, status, created_at, updated_at, version`

// CreateBookingWithLock inserts the booking unless a non-cancelled booking already holds its slot.
// The check and the insert share one transaction; the partial unique index catches any race left.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var taken int
	queryCount := `SELECT COUNT(*) FROM bookings
	               WHERE venue_id = ? AND day_of_week = ? AND week_number = ? AND time_slot = ? AND status <> ?`
	err = tx.QueryRowContext(ctx, queryCount,
		booking.VenueID, int(booking.DayOfWeek), booking.WeekNumber, booking.TimeSlot, models.StatusCancelled,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	if booking.Status == "" {
		booking.Status = models.StatusPending
	}

	queryInsert := `INSERT INTO bookings (
				dj_username, venue_id, venue_owner_username, day_of_week, week_number,
				time_slot, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.DJUsername,
		booking.VenueID,
		booking.VenueOwnerUsername,
		int(booking.DayOfWeek),
		booking.WeekNumber,
		booking.TimeSlot,
		booking.Status,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// FindActiveBooking returns the non-cancelled booking holding key.
func (db *DB) FindActiveBooking(ctx context.Context, key models.SlotKey) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE venue_id = ? AND day_of_week = ? AND week_number = ? AND time_slot = ? AND status <> ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query,
		key.VenueID, int(key.DayOfWeek), key.WeekNumber, key.TimeSlot, models.StatusCancelled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}
	return b, nil
}

// ListBookingsByVenue returns the venue's bookings ordered by week, day and slot.
func (db *DB) ListBookingsByVenue(ctx context.Context, venueID int64, includeCancelled bool) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE venue_id = ?`
	args := []any{venueID}
	if !includeCancelled {
		query += ` AND status <> ?`
		args = append(args, models.StatusCancelled)
	}
	query += ` ORDER BY week_number, day_of_week, time_slot, id`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) ListBookingsByDJ(ctx context.Context, djUsername string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE dj_username = ?
	          ORDER BY week_number, day_of_week, time_slot, id`
	return db.queryBookings(ctx, query, djUsername)
}

func (db *DB) ListBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY id`
	return db.queryBookings(ctx, query, status)
}

// UpdateBookingStatusWithVersion changes the status if the stored version is still fromVersion.
// Reviving a cancelled booking whose slot was taken meanwhile fails with ErrSlotTaken.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row scanner) (*models.Booking, error) {
	var (
		b   models.Booking
		day int
	)
	err := row.Scan(
		&b.ID, &b.DJUsername, &b.VenueID, &b.VenueOwnerUsername, &day,
		&b.WeekNumber, &b.TimeSlot, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.DayOfWeek = time.Weekday(day)
	return &b, nil
}
