// Package client is a Go client for the djbooking HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"djbooking/internal/models"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "djbooking:client:"

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New builds a client for baseURL authenticating with the key pair (either may be empty).
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches venue and slot reads in Redis for ttl. Writes are never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// BookingRequest is the body of CreateBooking.
type BookingRequest struct {
	VenueID    int64  `json:"venue_id"`
	DJUsername string `json:"dj_username"`
	DayOfWeek  string `json:"day_of_week"`
	WeekNumber int    `json:"week_number"`
	TimeSlot   string `json:"time_slot"`
}

func (c *Client) ListVenues(ctx context.Context) ([]models.Venue, error) {
	var wrap struct {
		Venues []models.Venue `json:"venues"`
	}
	if err := c.cachedGet(ctx, "/api/v1/venues", &wrap); err != nil {
		return nil, err
	}
	return wrap.Venues, nil
}

func (c *Client) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	var venue models.Venue
	if err := c.cachedGet(ctx, fmt.Sprintf("/api/v1/venues/%d", id), &venue); err != nil {
		return nil, err
	}
	return &venue, nil
}

// Slots lists every (week, slot) of the venue on day with its availability.
func (c *Client) Slots(ctx context.Context, venueID int64, day time.Weekday) ([]models.SlotAvailability, error) {
	path := fmt.Sprintf("/api/v1/venues/%d/slots?day=%s", venueID, url.QueryEscape(strings.ToLower(day.String())))
	var wrap struct {
		Slots []models.SlotAvailability `json:"slots"`
	}
	if err := c.cachedGet(ctx, path, &wrap); err != nil {
		return nil, err
	}
	return wrap.Slots, nil
}

func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	var booking models.Booking
	if err := c.send(ctx, http.MethodPost, "/api/v1/bookings", req, &booking); err != nil {
		return nil, err
	}
	c.invalidate(ctx, fmt.Sprintf("/api/v1/venues/%d/slots?", req.VenueID))
	return &booking, nil
}

func (c *Client) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	if err := c.send(ctx, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", id), nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// SetStatus changes a booking status; version must match the stored booking.
func (c *Client) SetStatus(ctx context.Context, id, version int64, status, changedBy string) (*models.Booking, error) {
	body := map[string]any{"status": status, "version": version, "changed_by": changedBy}
	var booking models.Booking
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), body, &booking); err != nil {
		return nil, err
	}
	c.invalidate(ctx, fmt.Sprintf("/api/v1/venues/%d/slots?", booking.VenueID))
	return &booking, nil
}

func (c *Client) NextOccurrence(ctx context.Context, bookingID int64, from time.Time) (*models.Occurrence, error) {
	path := fmt.Sprintf("/api/v1/bookings/%d/next?from=%s", bookingID, url.QueryEscape(from.Format(time.RFC3339)))
	var occ models.Occurrence
	if err := c.send(ctx, http.MethodGet, path, nil, &occ); err != nil {
		return nil, err
	}
	return &occ, nil
}

func (c *Client) Heartbeat(ctx context.Context, username string) error {
	return c.send(ctx, http.MethodPost, "/api/v1/presence/"+url.PathEscape(username), nil, nil)
}

func (c *Client) cachedGet(ctx context.Context, path string, out any) error {
	key := cachePrefix + path
	if c.readCache(ctx, key, out) {
		return nil
	}
	if err := c.send(ctx, http.MethodGet, path, nil, out); err != nil {
		return err
	}
	c.writeCache(ctx, key, out)
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidate drops cached entries whose path starts with prefix.
func (c *Client) invalidate(ctx context.Context, prefix string) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, cachePrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		_ = c.redis.Del(ctx, iter.Val()).Err()
	}
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &Error{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
