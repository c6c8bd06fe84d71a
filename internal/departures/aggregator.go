package departures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/departureboard/internal/common/logger"
	"github.com/departureboard/pkg/models"
)

const (
	DefaultMaxAttempts = 5
	DefaultTimezone    = "Europe/Stockholm"
)

// Fetcher returns one departure board for a station starting at cursor.
// Errors wrapping ErrAuthenticationFailed are treated as permanent; any
// other error only costs the attempt.
type Fetcher interface {
	FetchDepartures(ctx context.Context, stationID string, cursor Cursor) ([]models.Departure, error)
}

type Config struct {
	MaxAttempts int
	Location    *time.Location
	Clock       Clock
}

// Aggregator collects departures for a station until every line/direction
// has two upcoming vehicles or the attempt budget runs out.
type Aggregator struct {
	fetcher     Fetcher
	logger      logger.Logger
	maxAttempts int
	location    *time.Location
	clock       Clock
}

func NewAggregator(fetcher Fetcher, cfg Config, log logger.Logger) *Aggregator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.Local
		}
		cfg.Location = loc
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Aggregator{
		fetcher:     fetcher,
		logger:      log,
		maxAttempts: cfg.MaxAttempts,
		location:    cfg.Location,
		clock:       cfg.Clock,
	}
}

// GetDepartures returns the display rows for a station right now.
func (a *Aggregator) GetDepartures(ctx context.Context, stationID string) ([]models.VehicleInfo, error) {
	bins, err := a.Collect(ctx, stationID)
	if err != nil {
		return nil, err
	}

	rows, err := Format(bins, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("formatting departures for %s: %w", stationID, err)
	}

	a.logger.Debug("Departures aggregated", "station", stationID, "bins", bins.Len(), "rows", len(rows))
	return rows, nil
}

// Collect runs the bounded request loop and returns the accumulated bins.
func (a *Aggregator) Collect(ctx context.Context, stationID string) (Bins, error) {
	var bins Bins
	cursor := CursorAt(a.clock.Now(), a.location)

	for attempt := 1; attempt <= a.maxAttempts && !bins.Satisfied(); attempt++ {
		if err := ctx.Err(); err != nil {
			return Bins{}, err
		}

		batch, err := a.fetcher.FetchDepartures(ctx, stationID, cursor)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				return Bins{}, fmt.Errorf("fetching departures for %s: %w", stationID, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Bins{}, ctxErr
			}
			a.logger.Warn("Departure board request failed",
				"station", stationID,
				"attempt", attempt,
				"error", err)
			continue
		}

		if len(batch) > 0 {
			cursor = cursor.advance(batch[len(batch)-1])
		}

		var stats Placement
		bins, stats = bins.Place(batch, a.clock.Now(), a.location)

		a.logger.Debug("Departure board received",
			"station", stationID,
			"attempt", attempt,
			"records", len(batch),
			"placed", stats.Placed,
			"duplicates", stats.Duplicates,
			"out_of_window", stats.OutOfWindow,
			"unparseable", stats.Unparseable,
			"next_cursor", cursor.Date+" "+cursor.Time)
	}

	return bins, nil
}
