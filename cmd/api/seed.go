package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"djbooking/internal/database"
	"djbooking/internal/domain"
	"djbooking/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type venueSeed struct {
	Name          string                        `yaml:"name"`
	Description   string                        `yaml:"description"`
	OwnerUsername string                        `yaml:"owner_username"`
	ActiveWeeks   []int                         `yaml:"active_weeks"`
	Schedules     map[string]models.DaySchedule `yaml:"schedules"`
}

func loadVenueSeeds(path string) ([]venueSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Venues []venueSeed `yaml:"venues"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Venues, nil
}

func (s venueSeed) venue() (*models.Venue, error) {
	v := models.NewVenue(s.Name, s.OwnerUsername)
	v.Description = s.Description
	if len(s.ActiveWeeks) > 0 {
		v.ActiveWeeks = s.ActiveWeeks
	}
	for name, ds := range s.Schedules {
		day, err := models.ParseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("venue %q: %w", s.Name, err)
		}
		v.SetDaySchedule(day, ds)
	}
	return v, nil
}

// seedVenues creates venues from the seed file that do not exist yet. A missing file is not an error.
func seedVenues(ctx context.Context, path string, venues domain.VenueService, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}
	seeds, err := loadVenueSeeds(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("venues_file", path).Msg("no venue seed file")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("venues_file", path).Msg("read venue seeds")
		return err
	}

	existing, err := venues.ListVenues(ctx, false)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, v := range existing {
		known[v.Name] = true
	}

	created := 0
	for _, seed := range seeds {
		if known[seed.Name] {
			continue
		}
		v, err := seed.venue()
		if err != nil {
			return err
		}
		if err := venues.CreateVenue(ctx, v); err != nil {
			if errors.Is(err, database.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("seed venue %q: %w", seed.Name, err)
		}
		known[v.Name] = true
		created++
	}

	logger.Info().Int("created", created).Int("total", len(seeds)).Msg("venues seeded")
	return nil
}
