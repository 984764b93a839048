package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	// DefaultPresenceTTL время, через которое пользователь без heartbeat считается offline
	DefaultPresenceTTL = 5 * 60 // 5 минут в секундах

	// DefaultReminderLead за сколько до выступления публикуется напоминание
	DefaultReminderLead = 24 * 60 * 60 // 24 часа в секундах

	// DefaultReminderInterval период опроса подтвержденных бронирований
	DefaultReminderInterval = 15 * 60 // 15 минут в секундах

	// MaxOccurrencesWindowDays ограничение на окно выборки повторений
	MaxOccurrencesWindowDays = 366

	// TimeSlotLayout формат метки слота
	TimeSlotLayout = "15:04"
)

// DefaultActiveWeeks are the week-of-month buckets a new venue is open on.
func DefaultActiveWeeks() []int {
	return []int{1, 2, 3, 4}
}

// IsKnownStatus reports whether status is one of the booking statuses.
func IsKnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
