package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"djbooking/internal/config"
	"djbooking/internal/database"
	"djbooking/internal/events"
	"djbooking/internal/models"
	"djbooking/internal/repository"
	"djbooking/internal/schedule"
	"djbooking/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	ts        *httptest.Server
	db        *database.DB
	bus       *events.EventBus
	exportDir string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen := schedule.NewGenerator(&logger)
	bus := events.NewEventBus()
	svc := Services{
		Venues:    service.NewVenueService(db, gen, bus, &logger),
		Bookings:  service.NewBookingService(db, gen, bus, 366, time.UTC, &logger),
		Presence:  service.NewPresenceService(repository.NewMemoryPresenceRepository(), time.Minute, &logger),
		Generator: gen,
		Location:  time.UTC,
		ExportDir: t.TempDir(),
	}

	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
	srv := NewHTTPServer(cfg, svc, &logger)
	srv.now = func() time.Time { return testNow }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{ts: ts, db: db, bus: bus, exportDir: svc.ExportDir}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// createVenue opens Fri 20:00-02:00 and Sat 18:00-22:00 on weeks 1-4.
func (a *testAPI) createVenue(t *testing.T, name string) models.Venue {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/venues", map[string]any{
		"name":           name,
		"owner_username": "owner",
		"schedules": map[string]any{
			"friday":   map[string]string{"start_time": "20:00", "finish_time": "02:00"},
			"saturday": map[string]string{"start_time": "18:00", "finish_time": "22:00"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.Venue](t, resp)
}

func (a *testAPI) createBooking(t *testing.T, venueID int64, dj, day string, week int, slot string) *http.Response {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"venue_id":    venueID,
		"dj_username": dj,
		"day_of_week": day,
		"week_number": week,
		"time_slot":   slot,
	})
}

func TestVenueEndpoints(t *testing.T) {
	api := newTestAPI(t)
	venue := api.createVenue(t, "Basement")
	assert.Equal(t, []int{1, 2, 3, 4}, venue.ActiveWeeks)
	assert.True(t, venue.IsActive)

	resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d", venue.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Venue](t, resp)
	assert.Equal(t, "Basement", got.Name)
	assert.Len(t, got.DaySchedules, 2)

	resp = api.do(t, http.MethodGet, "/api/v1/venues", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Venues []models.Venue `json:"venues"`
	}](t, resp)
	assert.Len(t, list.Venues, 1)

	t.Run("slots", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/slots?day=fri", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Day   string                    `json:"day"`
			Slots []models.SlotAvailability `json:"slots"`
		}](t, resp)
		assert.Equal(t, "friday", body.Day)
		require.Len(t, body.Slots, 24, "six labels on each of four weeks")
		assert.Equal(t, "20:00", body.Slots[0].TimeSlot)
		assert.Equal(t, "01:00", body.Slots[5].TimeSlot)
	})

	t.Run("closed day has no slots", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/slots?day=monday", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Slots []models.SlotAvailability `json:"slots"`
		}](t, resp)
		assert.Empty(t, body.Slots)
	})

	t.Run("open", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/open?day=saturday&week=3", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[map[string]any](t, resp)["open"].(bool))

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/open?day=saturday&week=5", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[map[string]any](t, resp)["open"].(bool))
	})

	t.Run("update schedule and weeks", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, fmt.Sprintf("/api/v1/venues/%d/weeks", venue.ID),
			map[string]any{"version": venue.Version, "weeks": []int{2, 1}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decode[models.Venue](t, resp)
		assert.Equal(t, []int{1, 2}, updated.ActiveWeeks)

		resp = api.do(t, http.MethodPut, fmt.Sprintf("/api/v1/venues/%d/weeks", venue.ID),
			map[string]any{"version": venue.Version, "weeks": []int{3}})
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "stale version")

		resp = api.do(t, http.MethodPut, fmt.Sprintf("/api/v1/venues/%d/schedules/sunday", venue.ID),
			map[string]any{"version": updated.Version, "start_time": "25:00", "finish_time": "02:00"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/venues/%d/schedules/saturday?version=%d", venue.ID, updated.Version), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[models.Venue](t, resp).DaySchedules, 1)
	})

	t.Run("deactivate", func(t *testing.T) {
		other := api.createVenue(t, "Rooftop")
		resp := api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/venues/%d", other.ID), nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = api.do(t, http.MethodGet, "/api/v1/venues?all=true", nil)
		assert.Len(t, decode[struct {
			Venues []models.Venue `json:"venues"`
		}](t, resp).Venues, 2)
	})
}

func TestVenueErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown venue", http.MethodGet, "/api/v1/venues/99", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/venues/abc", nil, http.StatusBadRequest},
		{"bad weekday", http.MethodGet, "/api/v1/venues/1/slots?day=someday", nil, http.StatusBadRequest},
		{"bad week", http.MethodGet, "/api/v1/venues/1/open?day=fri&week=x", nil, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/venues", map[string]any{"unknown": 1}, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/v1/venues", map[string]any{"owner_username": "o"}, http.StatusBadRequest},
		{"week out of range", http.MethodPost, "/api/v1/venues", map[string]any{"name": "X", "owner_username": "o", "active_weeks": []int{5}}, http.StatusBadRequest},
		{"method not allowed", http.MethodPatch, "/api/v1/venues", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestBookingEndpoints(t *testing.T) {
	api := newTestAPI(t)
	venue := api.createVenue(t, "Basement")

	var published []string
	for _, et := range []string{events.EventBookingCreated, events.EventBookingConfirmed} {
		api.bus.Subscribe(et, func(e *events.Event) error {
			published = append(published, e.Type)
			return nil
		})
	}

	resp := api.createBooking(t, venue.ID, "dj_a", "friday", 2, "21:00")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decode[models.Booking](t, resp)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, "owner", booking.VenueOwnerUsername)
	assert.Equal(t, time.Friday, booking.DayOfWeek)

	t.Run("slot conflict", func(t *testing.T) {
		resp := api.createBooking(t, venue.ID, "dj_b", "fri", 2, "21:00")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("rejections", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity, api.createBooking(t, venue.ID, "dj_b", "monday", 1, "21:00").StatusCode)
		assert.Equal(t, http.StatusBadRequest, api.createBooking(t, venue.ID, "dj_b", "friday", 1, "03:00").StatusCode)
		assert.Equal(t, http.StatusBadRequest, api.createBooking(t, venue.ID, "dj_b", "friday", 5, "21:00").StatusCode)
		assert.Equal(t, http.StatusNotFound, api.createBooking(t, 999, "dj_b", "friday", 1, "21:00").StatusCode)
	})

	t.Run("slots show holder", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/slots?day=friday", venue.ID), nil)
		body := decode[struct {
			Slots []models.SlotAvailability `json:"slots"`
		}](t, resp)
		var held []models.SlotAvailability
		for _, s := range body.Slots {
			if !s.Available {
				held = append(held, s)
			}
		}
		require.Len(t, held, 1)
		assert.Equal(t, models.SlotAvailability{Week: 2, TimeSlot: "21:00", BookedBy: "dj_a"}, held[0])
	})

	t.Run("next occurrence", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/next?from=2026-10-15", booking.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		occ := decode[models.Occurrence](t, resp)
		assert.True(t, occ.At.Equal(time.Date(2026, 11, 13, 21, 0, 0, 0, time.UTC)), occ.At)
		assert.Equal(t, 2, occ.Week)

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/next?from=yesterday", booking.ID), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("occurrences", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/occurrences?from=2026-10-01&to=2026-12-31", booking.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Occurrences []models.Occurrence `json:"occurrences"`
		}](t, resp)
		require.Len(t, body.Occurrences, 3)
		assert.Equal(t, 9, body.Occurrences[0].At.Day())
		assert.Equal(t, 13, body.Occurrences[1].At.Day())
		assert.Equal(t, 11, body.Occurrences[2].At.Day())

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/occurrences?from=2026-01-01&to=2028-01-01", booking.ID), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("status", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/%d/status", booking.ID)
		resp := api.do(t, http.MethodPost, path, map[string]any{"status": "Confirmed", "version": booking.Version, "changed_by": "owner"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decode[models.Booking](t, resp)
		assert.Equal(t, models.StatusConfirmed, updated.Status)
		assert.Equal(t, booking.Version+1, updated.Version)

		resp = api.do(t, http.MethodPost, path, map[string]any{"status": "cancelled", "version": booking.Version})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = api.do(t, http.MethodPost, path, map[string]any{"status": "archived", "version": updated.Version})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lists", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/bookings?dj=dj_a", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[struct {
			Bookings []models.Booking `json:"bookings"`
		}](t, resp).Bookings, 1)

		resp = api.do(t, http.MethodGet, "/api/v1/bookings", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/bookings", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[struct {
			Bookings []models.Booking `json:"bookings"`
		}](t, resp).Bookings, 1)
	})

	t.Run("export", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/export?month=2026-10", venue.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, xlsxType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "2026-10.xlsx")

		f, err := excelize.OpenReader(resp.Body)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Schedule")
		require.NoError(t, err)
		assert.Greater(t, len(rows), 2)

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/export?month=October", venue.ID), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d/export?month=2026-10&save=true", venue.ID), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		saved := decode[map[string]string](t, resp)["path"]
		assert.Equal(t, api.exportDir, filepath.Dir(saved))
		_, err = os.Stat(saved)
		assert.NoError(t, err)
	})

	assert.Equal(t, []string{events.EventBookingCreated, events.EventBookingConfirmed}, published)
}

func TestPresenceEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/api/v1/presence/@DJ_A", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/presence/dj_a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["online"])

	resp = api.do(t, http.MethodGet, "/api/v1/presence", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"dj_a"}, decode[struct {
		Users []string `json:"users"`
	}](t, resp).Users)

	resp = api.do(t, http.MethodDelete, "/api/v1/presence/dj_a", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/presence/dj_a", nil)
	assert.Equal(t, false, decode[map[string]any](t, resp)["online"])
}

func TestWeekOfMonthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		query string
		want  float64
		day   string
	}{
		{"?date=2026-10-01", 1, "thursday"},
		{"?date=2026-10-15", 3, "thursday"},
		{"?date=2026-08-30", 6, "sunday"},
		{"", 3, "thursday"},
	}
	for _, tt := range tests {
		resp := api.do(t, http.MethodGet, "/api/v1/week-of-month"+tt.query, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		assert.Equal(t, tt.want, body["week_of_month"], tt.query)
		assert.Equal(t, tt.day, body["day"], tt.query)
	}

	resp := api.do(t, http.MethodGet, "/api/v1/week-of-month?date=15.10.2026", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodGet, api.ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-Id"))

	resp2 := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Len(t, resp2.Header.Get("X-Request-Id"), 36)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", database.ErrNotFound), http.StatusNotFound},
		{database.ErrSlotTaken, http.StatusConflict},
		{database.ErrConcurrentModification, http.StatusConflict},
		{service.ErrVenueClosed, http.StatusUnprocessableEntity},
		{service.ErrVenueInactive, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", service.ErrValidation), http.StatusBadRequest},
		{schedule.ErrInvalidSchedule, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestHTTPServerShutdown(t *testing.T) {
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}, Services{}, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
