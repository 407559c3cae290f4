// Package market gates trading on venue hours.
package market

import "time"

const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// InHours reports whether now falls within regular trading hours:
// Monday through Friday, 09:30 to 16:00 inclusive. No timezone
// conversion happens here; the process clock is assumed to already be
// venue time.
func InHours(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	dayOpen := time.Date(now.Year(), now.Month(), now.Day(), openHour, openMinute, 0, 0, now.Location())
	dayClose := time.Date(now.Year(), now.Month(), now.Day(), closeHour, closeMinute, 0, 0, now.Location())
	return !now.Before(dayOpen) && !now.After(dayClose)
}
