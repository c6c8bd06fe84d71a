package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ServiceInstant combines a journey-planner date ("YYYY-MM-DD") and clock
// time ("HH:MM") into an instant in loc. The planner sends local wall-clock
// values without a zone, so loc must be the board's time zone. An empty date
// means the day of fallback in loc.
func ServiceInstant(date, clock string, loc *time.Location, fallback time.Time) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return time.Time{}, fmt.Errorf("empty departure time")
	}

	date = strings.TrimSpace(date)
	if date == "" {
		date = fallback.In(loc).Format(DateLayout)
	}

	// Seconds occasionally show up on realtime values
	formats := []string{
		DateLayout + " " + ClockLayout,
		DateLayout + " 15:04:05",
	}

	var parseErr error
	for _, format := range formats {
		t, err := time.ParseInLocation(format, date+" "+clock, loc)
		if err == nil {
			return t, nil
		}
		parseErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse departure time %q %q: %w", date, clock, parseErr)
}
