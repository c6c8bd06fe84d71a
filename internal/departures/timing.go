package departures

import (
	"math"
	"time"

	"github.com/departureboard/pkg/models"
)

// WindowMinutes is how far ahead a departure may be to enter a bin.
const WindowMinutes = 60

// Clock tells the aggregator what "now" is.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Cursor is the (date, time) position the next board request starts from.
type Cursor struct {
	Date string
	Time string
}

// CursorAt returns the cursor for t in loc.
func CursorAt(t time.Time, loc *time.Location) Cursor {
	local := t.In(loc)
	return Cursor{
		Date: local.Format(models.DateLayout),
		Time: local.Format(models.ClockLayout),
	}
}

// advance moves the cursor to the last departure of a batch.
func (c Cursor) advance(last models.Departure) Cursor {
	next := Cursor{Date: last.EffectiveDate(), Time: last.EffectiveTime()}
	if next.Date == "" {
		next.Date = c.Date
	}
	if next.Time == "" {
		next.Time = c.Time
	}
	return next
}

// minutesUntil counts whole minutes from the start of now's minute, so a
// vehicle leaving in the current minute is 0 rather than -1. The result is
// negative for departures already gone.
func minutesUntil(departs, now time.Time) int {
	return int(math.Round(departs.Sub(now.Truncate(time.Minute)).Minutes()))
}

func clampMinutes(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes
}

func inWindow(minutes int) bool {
	return minutes >= 0 && minutes < WindowMinutes
}
