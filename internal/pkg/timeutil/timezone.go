package timeutil

import (
	"time"
)

// UserLocation resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown
func UserLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatInZone renders t in the user's timezone, e.g. "2025-03-14 09:26 CET".
// A zero time renders as an empty string.
func FormatInZone(t time.Time, timezone string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(UserLocation(timezone)).Format("2006-01-02 15:04 MST")
}
