package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"djbooking/internal/config"
	"djbooking/internal/domain"
	"djbooking/internal/metrics"
	"djbooking/internal/schedule"

	"github.com/rs/zerolog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Services are the domain operations the HTTP API exposes.
type Services struct {
	Venues    domain.VenueService
	Bookings  domain.BookingService
	Presence  domain.PresenceService
	Generator *schedule.Generator
	// Location is the timezone dates in queries are read in.
	Location *time.Location
	// ExportDir receives workbooks requested with save=true. Empty disables saving.
	ExportDir string
}

// HTTPServer exposes the booking API as JSON over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	if svc.Generator == nil {
		svc.Generator = schedule.NewGenerator(logger)
	}

	srv := &HTTPServer{
		cfg:  cfg,
		svc:  svc,
		auth: NewHTTPAuth(cfg),
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.requestMiddleware(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /api/v1/venues", s.handleListVenues)
	s.handle(mux, "POST /api/v1/venues", s.handleCreateVenue)
	s.handle(mux, "GET /api/v1/venues/{id}", s.handleGetVenue)
	s.handle(mux, "DELETE /api/v1/venues/{id}", s.handleDeactivateVenue)
	s.handle(mux, "PUT /api/v1/venues/{id}/schedules/{day}", s.handleSetDaySchedule)
	s.handle(mux, "DELETE /api/v1/venues/{id}/schedules/{day}", s.handleRemoveDaySchedule)
	s.handle(mux, "PUT /api/v1/venues/{id}/weeks", s.handleSetActiveWeeks)
	s.handle(mux, "GET /api/v1/venues/{id}/slots", s.handleSlots)
	s.handle(mux, "GET /api/v1/venues/{id}/open", s.handleIsOpen)
	s.handle(mux, "GET /api/v1/venues/{id}/bookings", s.handleVenueBookings)
	s.handle(mux, "GET /api/v1/venues/{id}/export", s.handleExport)

	s.handle(mux, "GET /api/v1/bookings", s.handleListBookings)
	s.handle(mux, "POST /api/v1/bookings", s.handleCreateBooking)
	s.handle(mux, "GET /api/v1/bookings/{id}", s.handleGetBooking)
	s.handle(mux, "GET /api/v1/bookings/{id}/next", s.handleNextOccurrence)
	s.handle(mux, "GET /api/v1/bookings/{id}/occurrences", s.handleOccurrences)
	s.handle(mux, "POST /api/v1/bookings/{id}/status", s.handleSetStatus)

	s.handle(mux, "GET /api/v1/presence", s.handleOnline)
	s.handle(mux, "GET /api/v1/presence/{username}", s.handleIsOnline)
	s.handle(mux, "POST /api/v1/presence/{username}", s.handleHeartbeat)
	s.handle(mux, "DELETE /api/v1/presence/{username}", s.handleLeave)

	s.handle(mux, "GET /api/v1/week-of-month", s.handleWeekOfMonth)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requestMiddleware assigns a request id and writes the access log.
func (s *HTTPServer) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := requestIDFromHeader(r.Header.Get(requestIDMetadataKey))
		w.Header().Set(requestIDMetadataKey, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
