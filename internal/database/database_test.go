package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"djbooking/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestVenue(t *testing.T, db *DB, name string) *models.Venue {
	t.Helper()
	v := models.NewVenue(name, "owner_"+name)
	v.SetDaySchedule(time.Friday, models.DaySchedule{StartTime: "20:00", FinishTime: "02:00"})
	v.SetDaySchedule(time.Saturday, models.DaySchedule{StartTime: "18:00", FinishTime: "22:00"})
	require.NoError(t, db.CreateVenue(context.Background(), v))
	return v
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_ReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	createTestVenue(t, db, "Reopen")
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	venues, err := db.ListVenues(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, venues, 1)
}

func TestEnsureColumnIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.ensureColumn("bookings", "version", "INTEGER NOT NULL DEFAULT 1"))
	assert.Error(t, db.ensureColumn("missing_table", "x", "TEXT"))
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	assert.Error(t, db.Ping(ctx))
	assert.Error(t, db.CreateVenue(ctx, models.NewVenue("x", "y")))
	_, err = db.ListVenues(ctx, true)
	assert.Error(t, err)
	assert.Error(t, db.CreateBookingWithLock(ctx, &models.Booking{}))
	_, err = db.ListBookingsByStatus(ctx, models.StatusConfirmed)
	assert.Error(t, err)
	assert.Error(t, db.UpdateBookingStatusWithVersion(ctx, 1, 1, models.StatusConfirmed))
}
