package service

import (
	"context"
	"io"
	"testing"
	"time"

	"djbooking/internal/database"
	"djbooking/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedVenue stores a venue open Fri 20:00-02:00 and Sat 18:00-22:00 on weeks 1-4.
func seedVenue(t *testing.T, db *database.DB, name string) *models.Venue {
	t.Helper()
	v := models.NewVenue(name, "owner_"+name)
	v.SetDaySchedule(time.Friday, models.DaySchedule{StartTime: "20:00", FinishTime: "02:00"})
	v.SetDaySchedule(time.Saturday, models.DaySchedule{StartTime: "18:00", FinishTime: "22:00"})
	require.NoError(t, db.CreateVenue(context.Background(), v))
	return v
}
