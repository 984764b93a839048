package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"djbooking/internal/database"
	"djbooking/internal/export"
	"djbooking/internal/models"
	"djbooking/internal/schedule"
	"djbooking/internal/service"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type venueRequest struct {
	Name          string                        `json:"name"`
	Description   string                        `json:"description"`
	OwnerUsername string                        `json:"owner_username"`
	ActiveWeeks   []int                         `json:"active_weeks"`
	Schedules     map[string]models.DaySchedule `json:"schedules"`
}

type scheduleRequest struct {
	Version    int64  `json:"version"`
	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
}

type weeksRequest struct {
	Version int64 `json:"version"`
	Weeks   []int `json:"weeks"`
}

type bookingRequest struct {
	VenueID    int64  `json:"venue_id"`
	DJUsername string `json:"dj_username"`
	DayOfWeek  string `json:"day_of_week"`
	WeekNumber int    `json:"week_number"`
	TimeSlot   string `json:"time_slot"`
}

type statusRequest struct {
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	ChangedBy string `json:"changed_by"`
}

func (s *HTTPServer) handleListVenues(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	venues, err := s.svc.Venues.ListVenues(r.Context(), !all)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

func (s *HTTPServer) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var req venueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	venue := models.NewVenue(req.Name, req.OwnerUsername)
	venue.Description = req.Description
	if req.ActiveWeeks != nil {
		venue.ActiveWeeks = req.ActiveWeeks
	}
	for name, ds := range req.Schedules {
		day, err := models.ParseWeekday(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		venue.SetDaySchedule(day, ds)
	}

	if err := s.svc.Venues.CreateVenue(r.Context(), venue); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, venue)
}

func (s *HTTPServer) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	venue, err := s.svc.Venues.GetVenue(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleDeactivateVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Venues.Deactivate(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSetDaySchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, ok := pathWeekday(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	venue, err := s.svc.Venues.SetDaySchedule(r.Context(), id, req.Version, day,
		models.DaySchedule{StartTime: req.StartTime, FinishTime: req.FinishTime})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleRemoveDaySchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, ok := pathWeekday(w, r)
	if !ok {
		return
	}
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}

	venue, err := s.svc.Venues.RemoveDaySchedule(r.Context(), id, version, day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleSetActiveWeeks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req weeksRequest
	if !decodeBody(w, r, &req) {
		return
	}

	venue, err := s.svc.Venues.SetActiveWeeks(r.Context(), id, req.Version, req.Weeks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, err := models.ParseWeekday(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.svc.Venues.Slots(r.Context(), id, day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"venue_id": id,
		"day":      strings.ToLower(day.String()),
		"slots":    slots,
	})
}

func (s *HTTPServer) handleIsOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	day, err := models.ParseWeekday(q.Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	week, err := strconv.Atoi(q.Get("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be a number")
		return
	}

	open, err := s.svc.Venues.IsOpenOn(r.Context(), id, day, week)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venue_id": id, "day": strings.ToLower(day.String()), "week": week, "open": open})
}

func (s *HTTPServer) handleVenueBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	includeCancelled, _ := strconv.ParseBool(r.URL.Query().Get("include_cancelled"))
	bookings, err := s.svc.Bookings.ListForVenue(r.Context(), id, includeCancelled)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	month := s.now().In(s.svc.Location)
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		parsed, err := time.ParseInLocation(monthLayout, raw, s.svc.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month format; expected YYYY-MM")
			return
		}
		month = parsed
	}

	venue, err := s.svc.Venues.GetVenue(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	bookings, err := s.svc.Bookings.ListForVenue(r.Context(), id, false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if s.svc.ExportDir == "" {
			writeError(w, http.StatusBadRequest, "saving exports is disabled")
			return
		}
		path, err := export.SaveMonthSchedule(s.svc.ExportDir, venue, bookings, s.svc.Generator, month.Year(), month.Month(), s.svc.Location)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})
		return
	}

	f, err := export.MonthSchedule(venue, bookings, s.svc.Generator, month.Year(), month.Month(), s.svc.Location)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(venue, month.Year(), month.Month())))
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("write export")
	}
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	dj := strings.TrimSpace(r.URL.Query().Get("dj"))
	if dj == "" {
		writeError(w, http.StatusBadRequest, "dj is required")
		return
	}
	bookings, err := s.svc.Bookings.ListForDJ(r.Context(), dj)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	day, err := models.ParseWeekday(req.DayOfWeek)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking := &models.Booking{
		VenueID:    req.VenueID,
		DJUsername: req.DJUsername,
		DayOfWeek:  day,
		WeekNumber: req.WeekNumber,
		TimeSlot:   req.TimeSlot,
	}
	if err := s.svc.Bookings.CreateBooking(r.Context(), booking); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, err := s.parseInstant(r.URL.Query().Get("from"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, err := s.svc.Bookings.NextOccurrence(r.Context(), id, from)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (s *HTTPServer) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := s.parseInstant(q.Get("from"), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := s.parseInstant(q.Get("to"), from.AddDate(0, 3, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, err := s.svc.Bookings.Occurrences(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occurrences": occ})
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.svc.Bookings.SetStatus(r.Context(), id, req.Version, status, req.ChangedBy); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleOnline(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Presence.Online(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleIsOnline(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	online, err := s.svc.Presence.IsOnline(r.Context(), username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "online": online})
}

func (s *HTTPServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Presence.Heartbeat(r.Context(), r.PathValue("username")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Presence.Leave(r.Context(), r.PathValue("username")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleWeekOfMonth(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	date := s.now().In(s.svc.Location)
	if raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, s.svc.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		date = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":          date.Format(dateLayout),
		"day":           strings.ToLower(date.Weekday().String()),
		"week_of_month": schedule.WeekOfMonth(date),
	})
}

// writeServiceError maps domain errors to status codes. Unknown errors are logged and hidden.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusForError(err)
	if statusCode == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, statusCode, "internal error")
		return
	}
	writeError(w, statusCode, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrVenueInactive), errors.Is(err, service.ErrVenueClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidWeek),
		errors.Is(err, service.ErrSlotNotOffered),
		errors.Is(err, service.ErrUnknownStatus),
		errors.Is(err, service.ErrWindowTooLarge),
		errors.Is(err, schedule.ErrInvalidSchedule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseInstant accepts RFC 3339, a local "YYYY-MM-DDTHH:MM" or a bare date. Empty input yields def.
func (s *HTTPServer) parseInstant(raw string, def time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", dateLayout} {
		if t, err := time.ParseInLocation(layout, raw, s.svc.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q; expected RFC3339 or YYYY-MM-DD", raw)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pathWeekday(w http.ResponseWriter, r *http.Request) (time.Weekday, bool) {
	day, err := models.ParseWeekday(r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return day, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
