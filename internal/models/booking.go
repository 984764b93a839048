package models

import "time"

// Booking is a recurring monthly commitment: the WeekNumber-th bucket of DayOfWeek at TimeSlot.
type Booking struct {
	ID                 int64        `json:"id"`
	DJUsername         string       `json:"dj_username"`
	VenueID            int64        `json:"venue_id"`
	VenueOwnerUsername string       `json:"venue_owner_username"`
	DayOfWeek          time.Weekday `json:"day_of_week"`
	WeekNumber         int          `json:"week_number"`
	TimeSlot           string       `json:"time_slot"` // "HH:mm"
	Status             string       `json:"status"`    // pending, confirmed, cancelled, completed
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Version            int64        `json:"version"`
}

// SlotKey identifies a recurring slot at a venue. Non-cancelled bookings are unique per key.
type SlotKey struct {
	VenueID    int64
	DayOfWeek  time.Weekday
	WeekNumber int
	TimeSlot   string
}

func (b *Booking) Key() SlotKey {
	return SlotKey{
		VenueID:    b.VenueID,
		DayOfWeek:  b.DayOfWeek,
		WeekNumber: b.WeekNumber,
		TimeSlot:   b.TimeSlot,
	}
}

// IsActive reports whether the booking still holds its slot.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// Occurrence is one concrete calendar instance of a recurring booking.
type Occurrence struct {
	BookingID int64     `json:"booking_id"`
	VenueID   int64     `json:"venue_id"`
	At        time.Time `json:"at"`
	Week      int       `json:"week_of_month"`
}

// SlotAvailability is one generated slot of a venue day for a given week of month.
type SlotAvailability struct {
	Week      int    `json:"week_of_month"`
	TimeSlot  string `json:"time_slot"`
	Available bool   `json:"available"`
	BookedBy  string `json:"booked_by,omitempty"`
}
