package timeutil

import (
	"testing"
	"time"
)

func TestFormatInZone(t *testing.T) {
	ts := time.Date(2025, 3, 14, 8, 26, 0, 0, time.UTC)

	tests := []struct {
		name     string
		t        time.Time
		timezone string
		want     string
	}{
		{name: "empty timezone uses UTC", t: ts, timezone: "", want: "2025-03-14 08:26 UTC"},
		{name: "unknown timezone uses UTC", t: ts, timezone: "Mars/Olympus", want: "2025-03-14 08:26 UTC"},
		{name: "zero time", t: time.Time{}, timezone: "UTC", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatInZone(tt.t, tt.timezone); got != tt.want {
				t.Errorf("FormatInZone() = %q, want %q", got, tt.want)
			}
		})
	}
}
