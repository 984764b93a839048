package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"djbooking/internal/models"
)

const venueColumns = `id, name, description, owner_username, is_active, day_schedules,
                      active_weeks, created_at, updated_at, version`

func (db *DB) CreateVenue(ctx context.Context, venue *models.Venue) error {
	schedules, weeks, err := encodeVenueSchedule(venue)
	if err != nil {
		return err
	}

	query := `INSERT INTO venues (
				name, description, owner_username, is_active, day_schedules,
				active_weeks, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		venue.Name,
		venue.Description,
		venue.OwnerUsername,
		venue.IsActive,
		schedules,
		weeks,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("venue %q: %w", venue.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create venue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	venue.ID = id
	venue.CreatedAt = now
	venue.UpdatedAt = now
	venue.Version = 1
	return nil
}

func (db *DB) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`
	venue, err := scanVenue(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return venue, nil
}

func (db *DB) GetVenueByName(ctx context.Context, name string) (*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE name = ?`
	venue, err := scanVenue(db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue by name: %w", err)
	}
	return venue, nil
}

func (db *DB) ListVenues(ctx context.Context, activeOnly bool) ([]*models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var venues []*models.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// UpdateVenueWithVersion stores venue if its version is still fromVersion and bumps venue.Version.
func (db *DB) UpdateVenueWithVersion(ctx context.Context, venue *models.Venue, fromVersion int64) error {
	schedules, weeks, err := encodeVenueSchedule(venue)
	if err != nil {
		return err
	}

	query := `UPDATE venues SET name = ?, description = ?, owner_username = ?, is_active = ?,
	                 day_schedules = ?, active_weeks = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		venue.Name, venue.Description, venue.OwnerUsername, venue.IsActive,
		schedules, weeks, now, venue.ID, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	venue.Version = fromVersion + 1
	venue.UpdatedAt = now
	return nil
}

func (db *DB) DeactivateVenue(ctx context.Context, id int64) error {
	query := `UPDATE venues SET is_active = 0, version = version + 1, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate venue: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("venue %d: %w", id, ErrNotFound)
	}
	return nil
}

func encodeVenueSchedule(venue *models.Venue) (string, string, error) {
	schedules := venue.DaySchedules
	if schedules == nil {
		schedules = map[time.Weekday]models.DaySchedule{}
	}
	s, err := json.Marshal(schedules)
	if err != nil {
		return "", "", fmt.Errorf("encode day schedules: %w", err)
	}

	weeks := venue.ActiveWeeks
	if weeks == nil {
		weeks = []int{}
	}
	w, err := json.Marshal(weeks)
	if err != nil {
		return "", "", fmt.Errorf("encode active weeks: %w", err)
	}
	return string(s), string(w), nil
}

func scanVenue(row scanner) (*models.Venue, error) {
	var (
		v                    models.Venue
		schedulesJSON, weeks string
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.Description, &v.OwnerUsername, &v.IsActive,
		&schedulesJSON, &weeks, &v.CreatedAt, &v.UpdatedAt, &v.Version,
	)
	if err != nil {
		return nil, err
	}

	v.DaySchedules = make(map[time.Weekday]models.DaySchedule)
	if err := json.Unmarshal([]byte(schedulesJSON), &v.DaySchedules); err != nil {
		return nil, fmt.Errorf("decode day schedules of venue %d: %w", v.ID, err)
	}
	if err := json.Unmarshal([]byte(weeks), &v.ActiveWeeks); err != nil {
		return nil, fmt.Errorf("decode active weeks of venue %d: %w", v.ID, err)
	}
	return &v, nil
}
