package departures

import (
	"time"

	"github.com/departureboard/pkg/models"
)

// BinKey identifies one line/direction pair.
type BinKey struct {
	Line      string
	Direction string
}

func keyOf(d models.Departure) BinKey {
	return BinKey{Line: d.Name, Direction: d.Direction}
}

type entry struct {
	departure models.Departure
	departs   time.Time
}

// Bins accumulates departures per line/direction across board requests.
// A Bins value is never modified in place: Place returns a new value, so a
// caller holding an older value keeps seeing what it saw.
type Bins struct {
	order []BinKey
	bins  map[BinKey][]entry
}

// Placement counts what happened to the records of one batch.
type Placement struct {
	Placed      int
	Duplicates  int
	OutOfWindow int
	Unparseable int
}

// Len returns the number of bins.
func (b Bins) Len() int {
	return len(b.order)
}

// Departures returns the departures of one bin in insertion order.
func (b Bins) Departures(key BinKey) []models.Departure {
	entries := b.bins[key]
	result := make([]models.Departure, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.departure)
	}
	return result
}

// Satisfied reports whether there is at least one bin and every bin holds
// two or more departures.
func (b Bins) Satisfied() bool {
	if len(b.order) == 0 {
		return false
	}
	for _, key := range b.order {
		if len(b.bins[key]) < 2 {
			return false
		}
	}
	return true
}

// Place folds a batch into the bins. Departures outside [0, 60) minutes of
// now are dropped, as are journeys a bin already holds. Times are read in loc.
func (b Bins) Place(batch []models.Departure, now time.Time, loc *time.Location) (Bins, Placement) {
	next := b.clone()
	var stats Placement

	for _, d := range batch {
		departs, err := models.ServiceInstant(d.EffectiveDate(), d.EffectiveTime(), loc, now)
		if err != nil {
			stats.Unparseable++
			continue
		}

		if !inWindow(minutesUntil(departs, now)) {
			stats.OutOfWindow++
			continue
		}

		key := keyOf(d)
		entries, exists := next.bins[key]
		if !exists {
			next.order = append(next.order, key)
		}
		if containsJourney(entries, d.JourneyID) {
			stats.Duplicates++
			continue
		}
		next.bins[key] = append(entries, entry{departure: d, departs: departs})
		stats.Placed++
	}

	return next, stats
}

func containsJourney(entries []entry, journeyID string) bool {
	for _, e := range entries {
		if e.departure.JourneyID == journeyID {
			return true
		}
	}
	return false
}

func (b Bins) clone() Bins {
	c := Bins{
		order: append([]BinKey(nil), b.order...),
		bins:  make(map[BinKey][]entry, len(b.bins)),
	}
	for key, entries := range b.bins {
		c.bins[key] = append([]entry(nil), entries...)
	}
	return c
}
